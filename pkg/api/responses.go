package api

type ChatResponse struct {
	ID                string         `json:"id"`
	Choices           []Choice       `json:"choices"`
	Created           int64          `json:"created"`
	Model             string         `json:"model"`
	Object            string         `json:"object"` // "chat.completion" or "chat.completion.chunk"
	SystemFingerprint string         `json:"system_fingerprint,omitempty"`
	Usage             *ResponseUsage `json:"usage,omitempty"`

	Error *ErrorResponse `json:"error,omitempty"`

	// Routing provenance, appended by the router on non-streaming responses.
	Metadata *ResponseMetadata `json:"x_metadata,omitempty"`
}

type Choice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"` // For non-streaming
	Delta        *Message `json:"delta,omitempty"`   // For streaming
	FinishReason string   `json:"finish_reason,omitempty"`
}

// Message is one outbound conversation turn as returned by a provider.
type Message struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type ResponseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseMetadata reports which model actually served the request.
type ResponseMetadata struct {
	SelectedModel    string  `json:"selected_model"`
	SelectedProvider string  `json:"selected_provider"`
	LatencyMS        int64   `json:"latency_ms"`
	CostPer1KTokens  float64 `json:"cost_per_1k_tokens"`
}

type ErrorResponse struct {
	Code    interface{} `json:"code,omitempty"`
	Message string      `json:"message"`
	Type    string      `json:"type,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// StreamResult is one element of a streaming response channel.
type StreamResult struct {
	Response *ChatResponse
	Err      error
}
