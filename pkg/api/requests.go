package api

import "encoding/json"

// ChatRequest is the inbound OpenAI-compatible chat completion request.
// task_type and strategy are router extensions used for model selection.
type ChatRequest struct {
	// message array is required, dive in and deep validate
	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`

	// Optional. When empty the router auto-selects a model.
	Model string `json:"model,omitempty"`

	// Enable streaming, defaults to `false` (empty)
	Stream bool `json:"stream,omitempty"`

	// Can be string or []string
	Stop *Stop `json:"stop,omitempty"`

	// LLM Parameters. Pointers so "explicitly set" is distinguishable
	// from "absent" when building the upstream call.
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	N                *int     `json:"n,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	// Per-call upstream timeout in seconds.
	Timeout *float64 `json:"timeout,omitempty"`

	// Router extensions
	TaskType string `json:"task_type,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// ChatMessage is one inbound conversation turn. Content is a pointer so the
// validator can distinguish a missing field from an empty string: an empty
// content string is legal, an absent content field is not.
type ChatMessage struct {
	Role    string  `json:"role" binding:"required"`
	Content *string `json:"content" binding:"required"`
	Name    string  `json:"name,omitempty"`
}

// Stop handles the union type: string | []string
type Stop struct {
	Val []string
}

func (s *Stop) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &s.Val)
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	s.Val = []string{str}
	return nil
}

func (s Stop) MarshalJSON() ([]byte, error) {
	if len(s.Val) == 1 {
		return json.Marshal(s.Val[0])
	}
	return json.Marshal(s.Val)
}

// RegisterModelRequest registers a new dynamic model with the router.
type RegisterModelRequest struct {
	Model           string   `json:"model" binding:"required"`
	Provider        string   `json:"provider" binding:"required,oneof=openai anthropic google groq ollama custom"`
	Credential      string   `json:"credential,omitempty"`
	Endpoint        string   `json:"endpoint,omitempty"`
	Priority        *int     `json:"priority,omitempty"`
	CostPer1KTokens *float64 `json:"cost_per_1k_tokens,omitempty"`
	TaskTypes       []string `json:"task_types,omitempty"`
	MaxTokens       *int     `json:"max_tokens,omitempty"`
}

// DiscoverRequest scans a peer inference server for models.
type DiscoverRequest struct {
	BaseURL string `json:"base_url" binding:"required,url"`
	Flavor  string `json:"flavor" binding:"required,oneof=tags openai"`
}
