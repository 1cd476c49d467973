package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/modelmux/modelmux/internal/engine"
	"github.com/modelmux/modelmux/internal/registry"
	"github.com/modelmux/modelmux/internal/selector"
	"github.com/modelmux/modelmux/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestLogSuccess(t *testing.T) {
	req := &api.ChatRequest{Model: "gpt-4o", Strategy: "cost", TaskType: "coding"}
	result := &engine.Result{
		Response: &api.ChatResponse{
			Usage: &api.ResponseUsage{PromptTokens: 10, CompletionTokens: 20},
		},
		Selection: selector.Selection{MatchKind: selector.MatchFuzzy},
		Descriptor: registry.ModelDescriptor{
			ID: "gpt-4o-mini", Provider: registry.ProviderOpenAI,
		},
		Attempts: 2,
		Latency:  250 * time.Millisecond,
		Trail: []engine.AttemptEvent{
			{Model: "llama3", Provider: "ollama", Attempt: 1, Err: errors.New("down")},
			{Model: "gpt-4o-mini", Provider: "openai", Attempt: 2},
		},
	}

	log := BuildRequestLog(req, result, nil, 200, "10.0.0.1")

	assert.NotEmpty(t, log.ID)
	assert.Equal(t, "gpt-4o", log.RequestedModel)
	assert.Equal(t, "gpt-4o-mini", log.SelectedModel)
	assert.Equal(t, "openai", log.Provider)
	assert.Equal(t, "fuzzy", log.MatchKind)
	assert.Equal(t, int64(250), log.LatencyMS)
	assert.Equal(t, 10, log.InputTokens)
	assert.Equal(t, 20, log.OutputTokens)
	assert.Equal(t, 2, log.Attempts)

	require.Len(t, log.AttemptLogs, 2)
	assert.False(t, log.AttemptLogs[0].Succeeded)
	assert.Equal(t, "down", log.AttemptLogs[0].Error)
	assert.True(t, log.AttemptLogs[1].Succeeded)
	assert.Equal(t, log.ID, log.AttemptLogs[1].RequestID)
}

func TestBuildRequestLogFailure(t *testing.T) {
	req := &api.ChatRequest{Model: "anything", Stream: true}
	trail := []engine.AttemptEvent{
		{Model: "a", Provider: "openai", Attempt: 1, Err: errors.New("x")},
		{Model: "b", Provider: "groq", Attempt: 2, Err: errors.New("y")},
	}

	log := BuildRequestLog(req, nil, trail, 502, "10.0.0.2")

	assert.Empty(t, log.SelectedModel)
	assert.Equal(t, 502, log.StatusCode)
	assert.Equal(t, 2, log.Attempts)
	assert.True(t, log.IsStreamed)
	require.Len(t, log.AttemptLogs, 2)
	assert.Equal(t, "y", log.AttemptLogs[1].Error)
}
