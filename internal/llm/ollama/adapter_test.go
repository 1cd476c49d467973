package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelmux/modelmux/internal/llm"
	"github.com/modelmux/modelmux/internal/llm/ollama"
	"github.com/modelmux/modelmux/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3:8b", body["model"])
		assert.Equal(t, false, body["stream"])
		// max_tokens travels as options.num_predict.
		opts := body["options"].(map[string]interface{})
		assert.EqualValues(t, 128, opts["num_predict"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "llama3:8b",
			"message": {"role": "assistant", "content": "Hello there."},
			"done": true,
			"done_reason": "stop",
			"prompt_eval_count": 12,
			"eval_count": 4
		}`))
	}))
	defer server.Close()

	adapter, err := ollama.NewAdapter(llm.Config{BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := adapter.Chat(context.Background(), &api.ChatRequest{
		Model:     "llama3:8b",
		MaxTokens: intPtr(128),
		Messages:  []api.ChatMessage{{Role: "user", Content: strPtr("Hi")}},
	})

	require.NoError(t, err)
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "llama3:8b", resp.Model)
	assert.Equal(t, "Hello there.", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
}

func TestOllamaChatLengthFinish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"model": "llama3:8b",
			"message": {"role": "assistant", "content": "truncated"},
			"done": true,
			"done_reason": "length",
			"prompt_eval_count": 3,
			"eval_count": 64
		}`))
	}))
	defer server.Close()

	adapter, err := ollama.NewAdapter(llm.Config{BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := adapter.Chat(context.Background(), &api.ChatRequest{
		Model:    "llama3:8b",
		Messages: []api.ChatMessage{{Role: "user", Content: strPtr("Hi")}},
	})

	require.NoError(t, err)
	assert.Equal(t, "length", resp.Choices[0].FinishReason)
}

func TestOllamaStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "application/x-ndjson")
		lines := []string{
			`{"model":"llama3:8b","message":{"role":"assistant","content":"Hel"},"done":false}`,
			`{"model":"llama3:8b","message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"model":"llama3:8b","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":2}`,
		}
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}))
	defer server.Close()

	adapter, err := ollama.NewAdapter(llm.Config{BaseURL: server.URL})
	require.NoError(t, err)

	ch, err := adapter.Stream(context.Background(), &api.ChatRequest{
		Model:    "llama3:8b",
		Stream:   true,
		Messages: []api.ChatMessage{{Role: "user", Content: strPtr("Hi")}},
	})
	require.NoError(t, err)

	var chunks []*api.ChatResponse
	for res := range ch {
		require.NoError(t, res.Err)
		chunks = append(chunks, res.Response)
	}

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hel", chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "lo", chunks[1].Choices[0].Delta.Content)
	assert.Equal(t, "stop", chunks[2].Choices[0].FinishReason)
	require.NotNil(t, chunks[2].Usage)
	assert.Equal(t, 14, chunks[2].Usage.TotalTokens)
}

func TestOllamaUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'missing:latest' not found"}`))
	}))
	defer server.Close()

	adapter, err := ollama.NewAdapter(llm.Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = adapter.Chat(context.Background(), &api.ChatRequest{
		Model:    "missing:latest",
		Messages: []api.ChatMessage{{Role: "user", Content: strPtr("Hi")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
