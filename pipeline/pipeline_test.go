package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rag-gateway/config"
	"rag-gateway/web/types"

	"go.uber.org/zap"
)

func testConfig(host string) *config.Config {
	return &config.Config{
		MainLLMHost:       host,
		QueryTimeout:      5 * time.Second,
		MaxAnswerTokens:   256,
		LLMTemperature:    0.3,
		MaxRetries:        3,
		RetryDelaySeconds: 10 * time.Millisecond,
	}
}

func TestAnswerExtractsContentAndPassesUsageThrough(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{
			"model": "local-7b",
			"choices": [{"message": {"role": "assistant", "content": "The answer."}}],
			"usage": {"prompt_tokens": 40, "completion_tokens": 12, "total_tokens": 52}
		}`))
	}))
	defer server.Close()

	client := New(testConfig(server.URL), zap.NewNop())
	raw, err := client.Answer(context.Background(), "question?", []types.Message{{Role: "user", Content: "earlier"}})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	if raw["answer"] != "The answer." {
		t.Errorf("answer = %v", raw["answer"])
	}
	usage, ok := raw["usage"].(map[string]any)
	if !ok || usage["total_tokens"] != float64(52) {
		t.Errorf("usage = %v", raw["usage"])
	}
	if raw["model"] != "local-7b" {
		t.Errorf("model = %v", raw["model"])
	}

	messages, ok := gotBody["messages"].([]any)
	if !ok || len(messages) != 3 {
		t.Fatalf("messages = %v, want system+history+user", gotBody["messages"])
	}
	first := messages[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("first message role = %v, want system", first["role"])
	}
	last := messages[2].(map[string]any)
	if last["content"] != "question?" {
		t.Errorf("last message content = %v", last["content"])
	}
}

func TestAnswerRetriesWhileModelLoads(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ready now"}}]}`))
	}))
	defer server.Close()

	client := New(testConfig(server.URL), zap.NewNop())
	raw, err := client.Answer(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if raw["answer"] != "ready now" {
		t.Errorf("answer = %v", raw["answer"])
	}
}

func TestAnswerNonRetryableStatusFailsImmediately(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(testConfig(server.URL), zap.NewNop())
	if _, err := client.Answer(context.Background(), "q", nil); err == nil {
		t.Fatal("expected error for 400 response, got nil")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (400 is not retryable)", calls)
	}
}

func TestAnswerMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no_choices", `{"choices":[]}`},
		{"missing_content", `{"choices":[{"message":{}}]}`},
		{"not_json", `<html>oops</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := New(testConfig(server.URL), zap.NewNop())
			if _, err := client.Answer(context.Background(), "q", nil); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
