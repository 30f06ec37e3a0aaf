package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CertMode controls how server certificates are verified for a single call.
// Verification is never relaxed process-wide; every request names its mode.
type CertMode int

const (
	// CertStrict uses the Go default verification chain.
	CertStrict CertMode = iota
	// CertSystemTrust re-validates against a freshly loaded OS trust store,
	// picking up locally installed roots that the default chain may miss.
	CertSystemTrust
	// CertInsecure disables verification. Only reachable by explicit
	// configuration; no code path escalates to it automatically.
	CertInsecure
)

func (m CertMode) String() string {
	switch m {
	case CertStrict:
		return "strict"
	case CertSystemTrust:
		return "system"
	case CertInsecure:
		return "insecure"
	}
	return fmt.Sprintf("certmode(%d)", int(m))
}

// ParseCertMode maps a configuration string to a CertMode.
func ParseCertMode(s string) (CertMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return CertStrict, nil
	case "system", "system_trust", "systemtruststore":
		return CertSystemTrust, nil
	case "insecure":
		return CertInsecure, nil
	}
	return CertStrict, fmt.Errorf("unknown certificate mode %q", s)
}

// CertificateError reports a failed certificate or hostname validation.
type CertificateError struct {
	Mode CertMode
	Err  error
}

func (e *CertificateError) Error() string {
	return fmt.Sprintf("certificate verification failed (mode %s): %v", e.Mode, e.Err)
}

func (e *CertificateError) Unwrap() error { return e.Err }

// NetworkError reports any transport failure other than certificate
// validation: DNS, refused connections, timeouts, or a non-2xx status.
// StatusCode is zero when no HTTP response was received.
type NetworkError struct {
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream returned status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Client performs outbound HTTPS calls with per-call certificate modes.
// One http.Client (and connection pool) is kept per mode; all of them are
// safe for concurrent use.
type Client struct {
	clients map[CertMode]*http.Client
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Client {
	clients := make(map[CertMode]*http.Client, 3)
	for _, mode := range []CertMode{CertStrict, CertSystemTrust, CertInsecure} {
		clients[mode] = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				TLSClientConfig:     tlsConfigFor(mode),
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{clients: clients, logger: logger}
}

func tlsConfigFor(mode CertMode) *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	switch mode {
	case CertSystemTrust:
		// Best effort: a nil pool falls back to the default chain, which is
		// no weaker than strict verification.
		if pool, err := x509.SystemCertPool(); err == nil {
			cfg.RootCAs = pool
		}
	case CertInsecure:
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

// Post sends a payload and returns the response body, classifying failures
// into CertificateError or NetworkError. Timeouts are owned by the caller's
// context; the transport imposes none of its own.
func (c *Client) Post(ctx context.Context, url, contentType string, payload []byte, header http.Header, mode CertMode) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("create request: %w", err)}
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, mode)
}

// Get fetches a URL under the given certificate mode.
func (c *Client) Get(ctx context.Context, url string, mode CertMode) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("create request: %w", err)}
	}
	return c.do(req, mode)
}

// PostFile uploads a local file as a multipart form under fieldName.
func (c *Client) PostFile(ctx context.Context, url, fieldName, filePath string, header http.Header, mode CertMode) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("open file: %w", err)}
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, filepath.Base(filePath))
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("create form file: %w", err)}
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("copy file data: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("close multipart writer: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("create request: %w", err)}
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, mode)
}

func (c *Client) do(req *http.Request, mode CertMode) ([]byte, error) {
	client, ok := c.clients[mode]
	if !ok {
		return nil, &NetworkError{Err: fmt.Errorf("unknown certificate mode %v", mode)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classify(err, mode)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Upstream returned non-2xx status",
			zap.String("url", req.URL.Redacted()),
			zap.Int("status", resp.StatusCode))
		return nil, &NetworkError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(truncateBody(bodyBytes))),
		}
	}
	return bodyBytes, nil
}

// classify separates certificate validation failures from everything else so
// callers can decide whether a trust-store retry makes sense.
func classify(err error, mode CertMode) error {
	var certVerify *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var certInvalid x509.CertificateInvalidError
	if errors.As(err, &certVerify) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &certInvalid) {
		return &CertificateError{Mode: mode, Err: err}
	}
	return &NetworkError{Err: err}
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
