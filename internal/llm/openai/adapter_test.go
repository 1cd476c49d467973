package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelmux/modelmux/internal/llm"
	"github.com/modelmux/modelmux/internal/llm/openai"
	"github.com/modelmux/modelmux/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestOpenAIChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		// Router-only fields must not leak upstream.
		assert.NotContains(t, body, "task_type")
		assert.NotContains(t, body, "strategy")
		assert.NotContains(t, body, "timeout")

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"created": 1677652288,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Hello there!"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 12, "total_tokens": 21}
		}`))
	}))
	defer server.Close()

	adapter, err := openai.NewAdapter(llm.Config{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)

	resp, err := adapter.Chat(context.Background(), &api.ChatRequest{
		Model:    "gpt-4o-mini",
		TaskType: "general",
		Strategy: "balanced",
		Messages: []api.ChatMessage{
			{Role: "user", Content: strPtr("Hi")},
		},
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "Hello there!", resp.Choices[0].Message.Content)
	assert.Equal(t, 21, resp.Usage.TotalTokens)
	assert.Equal(t, "openai", adapter.Type())
}

func TestOpenAIChatUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	adapter, err := openai.NewAdapter(llm.Config{APIKey: "bad-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = adapter.Chat(context.Background(), &api.ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []api.ChatMessage{{Role: "user", Content: strPtr("Hi")}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
	assert.Contains(t, err.Error(), "401")
}

func TestOpenAIStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	adapter, err := openai.NewAdapter(llm.Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	ch, err := adapter.Stream(context.Background(), &api.ChatRequest{
		Model:    "gpt-4o-mini",
		Stream:   true,
		Messages: []api.ChatMessage{{Role: "user", Content: strPtr("Hi")}},
	})
	require.NoError(t, err)

	var text string
	for res := range ch {
		require.NoError(t, res.Err)
		if len(res.Response.Choices) > 0 && res.Response.Choices[0].Delta != nil {
			text += res.Response.Choices[0].Delta.Content
		}
	}
	assert.Equal(t, "Hello", text)
}

func TestCustomRequiresEndpoint(t *testing.T) {
	_, err := llm.New("custom", llm.Config{APIKey: "k"})
	require.Error(t, err)

	p, err := llm.New("custom", llm.Config{APIKey: "k", BaseURL: "http://internal.llm.example/v1"})
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Type())
}
