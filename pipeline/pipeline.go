package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rag-gateway/config"
	"rag-gateway/web/types"

	"go.uber.org/zap"
)

const systemPrompt = `You are an AI assistant that answers questions about an organization's documents. Use only the provided conversation context as your source of truth. Keep responses clear, concise, and professional. If the context does not contain enough information to answer, say so instead of guessing.`

type chatRequest struct {
	Messages    []types.Message `json:"messages"`
	Stream      bool            `json:"stream"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

// Client is the v1 backend: a llama.cpp-compatible chat completion server
// running next to the gateway.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.QueryTimeout},
		logger:     logger,
	}
}

// Answer runs one chat completion and returns the raw backend payload:
// the answer text plus the server's usage and model fields untouched, so the
// router's normalizer sees the backend's own vocabulary.
func (c *Client) Answer(ctx context.Context, query string, history []types.Message) (map[string]any, error) {
	messages := make([]types.Message, 0, len(history)+2)
	messages = append(messages, types.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, types.Message{Role: "user", Content: query})

	reqBody := chatRequest{
		Messages:    messages,
		Stream:      false,
		MaxTokens:   c.cfg.MaxAnswerTokens,
		Temperature: c.cfg.LLMTemperature,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(c.cfg.MainLLMHost, "/"))

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("create chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		r, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			// Do not retry on context cancellation/deadline
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if r.StatusCode == http.StatusServiceUnavailable {
			// Model loading; retry with backoff
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
			c.logger.Warn("Local pipeline unavailable, retrying", zap.Int("attempt", attempt+1))
			c.backoffSleep(attempt)
			continue
		}
		resp = r
		break
	}
	if resp == nil {
		return nil, fmt.Errorf("no response from local pipeline: %w", lastErr)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local pipeline status %s: %s", resp.Status, string(bodyBytes))
	}

	var payload map[string]any
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	answer, err := extractAnswer(payload)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{"answer": answer}
	if usage, ok := payload["usage"]; ok {
		raw["usage"] = usage
	}
	if model, ok := payload["model"]; ok {
		raw["model"] = model
	}
	return raw, nil
}

// extractAnswer pulls choices[0].message.content from an OpenAI-style body.
func extractAnswer(payload map[string]any) (string, error) {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", fmt.Errorf("no response choices from local pipeline")
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", fmt.Errorf("malformed choice from local pipeline")
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("malformed message from local pipeline")
	}
	content, ok := message["content"].(string)
	if !ok {
		return "", fmt.Errorf("missing answer content from local pipeline")
	}
	return content, nil
}

func (c *Client) backoffSleep(attempt int) {
	base := c.cfg.RetryDelaySeconds
	if base <= 0 {
		base = time.Second
	}
	d := base * time.Duration(1<<attempt)
	const maxWait = 30 * time.Second
	if d > maxWait {
		d = maxWait
	}
	time.Sleep(d)
}
