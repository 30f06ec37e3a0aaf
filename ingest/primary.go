package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"rag-gateway/transport"

	"go.uber.org/zap"
)

// filePoster is the slice of the transport the parser client needs.
// *transport.Client satisfies it.
type filePoster interface {
	PostFile(ctx context.Context, url, fieldName, filePath string, header http.Header, mode transport.CertMode) ([]byte, error)
}

// ParserServiceClient calls the external cloud document parser. It starts at
// the configured certificate mode; when strict verification fails it retries
// exactly once against the OS trust store. It never falls through to
// insecure mode on its own.
type ParserServiceClient struct {
	baseURL string
	apiKey  string
	poster  filePoster
	mode    transport.CertMode
	logger  *zap.Logger
}

// parserResponse mirrors the parsing service's JSON contract. Page content
// arrives as markdown ("md") with a plain-text fallback field.
type parserResponse struct {
	Success  bool         `json:"success"`
	Markdown string       `json:"markdown"`
	Pages    []parserPage `json:"pages"`
	Error    string       `json:"error,omitempty"`
}

type parserPage struct {
	Page     int    `json:"page"`
	Markdown string `json:"md"`
	Text     string `json:"text"`
}

func NewParserServiceClient(baseURL, apiKey string, poster filePoster, mode transport.CertMode, logger *zap.Logger) *ParserServiceClient {
	return &ParserServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		poster:  poster,
		mode:    mode,
		logger:  logger,
	}
}

// Parse uploads the file and converts the service's markdown output into
// content nodes.
func (p *ParserServiceClient) Parse(ctx context.Context, filePath string) ([]Node, error) {
	url := p.baseURL + "/api/parsing/upload"
	header := http.Header{}
	if p.apiKey != "" {
		header.Set("Authorization", "Bearer "+p.apiKey)
	}

	body, err := p.poster.PostFile(ctx, url, "file", filePath, header, p.mode)
	var certErr *transport.CertificateError
	if err != nil && p.mode == transport.CertStrict && errors.As(err, &certErr) {
		p.logger.Warn("Strict certificate verification failed, retrying against system trust store",
			zap.String("path", filePath),
			zap.Error(err))
		body, err = p.poster.PostFile(ctx, url, "file", filePath, header, transport.CertSystemTrust)
	}
	if err != nil {
		return nil, err
	}

	var resp parserResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode parser response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("parser service reported failure: %s", resp.Error)
	}

	nodes := p.nodesFromResponse(resp)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("parser service returned no content")
	}

	p.logger.Info("Primary parser extraction successful",
		zap.String("path", filePath),
		zap.Int("nodes", len(nodes)))
	return nodes, nil
}

func (p *ParserServiceClient) nodesFromResponse(resp parserResponse) []Node {
	if len(resp.Pages) > 0 {
		nodes := make([]Node, 0, len(resp.Pages))
		for i, page := range resp.Pages {
			text := page.Markdown
			if text == "" {
				text = page.Text
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			num := page.Page
			if num == 0 {
				num = i + 1
			}
			nodes = append(nodes, Node{
				Title: fmt.Sprintf("Page %d", num),
				Text:  strings.TrimSpace(text),
				Page:  num,
			})
		}
		return nodes
	}
	return markdownNodes(resp.Markdown)
}
