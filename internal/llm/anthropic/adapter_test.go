package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelmux/modelmux/internal/llm"
	"github.com/modelmux/modelmux/internal/llm/anthropic"
	"github.com/modelmux/modelmux/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAnthropicChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// System turns fold into the top-level system field.
		assert.Equal(t, "You are terse.", body["system"])
		msgs := body["messages"].([]interface{})
		require.Len(t, msgs, 1)
		assert.EqualValues(t, 4096, body["max_tokens"])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"model": "claude-3-haiku",
			"content": [{"type": "text", "text": "Hi."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 7, "output_tokens": 3}
		}`))
	}))
	defer server.Close()

	adapter, err := anthropic.NewAdapter(llm.Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := adapter.Chat(context.Background(), &api.ChatRequest{
		Model: "claude-3-haiku",
		Messages: []api.ChatMessage{
			{Role: "system", Content: strPtr("You are terse.")},
			{Role: "user", Content: strPtr("Hello")},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "msg_01", resp.ID)
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "Hi.", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
}

func TestAnthropicMaxTokensFinish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 64, body["max_tokens"])

		_, _ = w.Write([]byte(`{
			"id": "msg_02",
			"model": "claude-3-haiku",
			"content": [{"type": "text", "text": "truncated"}],
			"stop_reason": "max_tokens",
			"usage": {"input_tokens": 5, "output_tokens": 64}
		}`))
	}))
	defer server.Close()

	adapter, err := anthropic.NewAdapter(llm.Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	maxTokens := 64
	resp, err := adapter.Chat(context.Background(), &api.ChatRequest{
		Model:     "claude-3-haiku",
		MaxTokens: &maxTokens,
		Messages:  []api.ChatMessage{{Role: "user", Content: strPtr("Hi")}},
	})

	require.NoError(t, err)
	assert.Equal(t, "length", resp.Choices[0].FinishReason)
}

func TestAnthropicStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, "data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_03\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n")
		fmt.Fprint(w, "event: message_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"message_delta\",\"usage\":{\"output_tokens\":2}}\n\n")
		fmt.Fprint(w, "event: message_stop\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	adapter, err := anthropic.NewAdapter(llm.Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	ch, err := adapter.Stream(context.Background(), &api.ChatRequest{
		Model:    "claude-3-haiku",
		Stream:   true,
		Messages: []api.ChatMessage{{Role: "user", Content: strPtr("Hi")}},
	})
	require.NoError(t, err)

	var text, finish string
	for res := range ch {
		require.NoError(t, res.Err)
		if len(res.Response.Choices) > 0 {
			if d := res.Response.Choices[0].Delta; d != nil {
				text += d.Content
			}
			if fr := res.Response.Choices[0].FinishReason; fr != "" {
				finish = fr
			}
		}
	}
	assert.Equal(t, "Hello", text)
	assert.Equal(t, "stop", finish)
}
