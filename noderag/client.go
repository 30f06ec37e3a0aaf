package noderag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"rag-gateway/transport"
	"rag-gateway/web/types"

	"go.uber.org/zap"
)

// Client talks to the remote NodeRAG graph-retrieval service. All calls go
// through the TLS-resilient transport under the configured certificate mode;
// the gateway never relaxes verification on the service's behalf.
type Client struct {
	baseURL string
	http    *transport.Client
	mode    transport.CertMode
	logger  *zap.Logger
}

type generateRequest struct {
	OrgID       string          `json:"org_id"`
	Query       string          `json:"query"`
	History     []types.Message `json:"conversation_history"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

func New(baseURL string, httpClient *transport.Client, mode transport.CertMode, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		mode:    mode,
		logger:  logger,
	}
}

// GenerateResponse asks NodeRAG to answer a query for an organization.
// The decoded payload is returned as-is: the documented contract guarantees
// "response", "sources" and "usage", but extra diagnostic fields pass
// through to the router untouched. A missing "usage" is tolerated here; the
// router's normalizer degrades it to zero usage.
func (c *Client) GenerateResponse(ctx context.Context, orgID, query string, history []types.Message, maxTokens int, temperature float64) (map[string]any, error) {
	if history == nil {
		history = []types.Message{}
	}
	reqBody := generateRequest{
		OrgID:       orgID,
		Query:       query,
		History:     history,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	body, err := c.http.Post(ctx, c.baseURL+"/api/v1/generate-response", "application/json", payload, nil, c.mode)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}

	c.logger.Debug("NodeRAG response received",
		zap.String("org_id", orgID),
		zap.Int("fields", len(raw)))
	return raw, nil
}

// Health checks the service's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.http.Get(ctx, c.baseURL+"/api/v1/health", c.mode); err != nil {
		return fmt.Errorf("noderag health check: %w", err)
	}
	return nil
}
