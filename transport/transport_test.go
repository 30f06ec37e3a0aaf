package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestParseCertMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    CertMode
		wantErr bool
	}{
		{"empty_defaults_to_strict", "", CertStrict, false},
		{"strict", "strict", CertStrict, false},
		{"system", "system", CertSystemTrust, false},
		{"system_trust", "system_trust", CertSystemTrust, false},
		{"insecure", "insecure", CertInsecure, false},
		{"mixed_case", "STRICT", CertStrict, false},
		{"unknown", "bogus", CertStrict, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCertMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCertMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCertMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStrictModeClassifiesSelfSignedAsCertificateError(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New(zap.NewNop())
	_, err := client.Get(context.Background(), server.URL, CertStrict)
	if err == nil {
		t.Fatal("expected certificate error against self-signed server, got nil")
	}

	var certErr *CertificateError
	if !errors.As(err, &certErr) {
		t.Fatalf("expected *CertificateError, got %T: %v", err, err)
	}
	if certErr.Mode != CertStrict {
		t.Errorf("CertificateError.Mode = %v, want %v", certErr.Mode, CertStrict)
	}
}

func TestInsecureModeAcceptsSelfSigned(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	client := New(zap.NewNop())
	body, err := client.Get(context.Background(), server.URL, CertInsecure)
	if err != nil {
		t.Fatalf("insecure fetch failed: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("body = %q, want %q", body, "hello")
	}
}

func TestNon2xxClassifiedAsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(zap.NewNop())
	_, err := client.Post(context.Background(), server.URL, "application/json", []byte(`{}`), nil, CertStrict)
	if err == nil {
		t.Fatal("expected error for 502 response, got nil")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if netErr.StatusCode != http.StatusBadGateway {
		t.Errorf("NetworkError.StatusCode = %d, want %d", netErr.StatusCode, http.StatusBadGateway)
	}
}

func TestConnectionRefusedClassifiedAsNetworkError(t *testing.T) {
	client := New(zap.NewNop())
	_, err := client.Get(context.Background(), "http://127.0.0.1:1", CertStrict)
	if err == nil {
		t.Fatal("expected error for refused connection, got nil")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if netErr.StatusCode != 0 {
		t.Errorf("NetworkError.StatusCode = %d, want 0 (no response)", netErr.StatusCode)
	}
}

func TestPostSendsPayloadAndHeaders(t *testing.T) {
	var gotContentType, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(zap.NewNop())
	header := http.Header{}
	header.Set("Authorization", "Bearer token123")

	body, err := client.Post(context.Background(), server.URL, "application/json", []byte(`{"a":1}`), header, CertStrict)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}
