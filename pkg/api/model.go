package api

// ModelInfo is the detailed registry listing entry.
type ModelInfo struct {
	ID              string   `json:"id"`
	Provider        string   `json:"provider"`
	Priority        int      `json:"priority"`
	CostPer1KTokens float64  `json:"cost_per_1k_tokens"`
	TaskTypes       []string `json:"task_types"`
	MaxTokens       int      `json:"max_tokens"`
	Available       bool     `json:"available"`
}

// OpenAIModel is one entry of the OpenAI-compatible /v1/models listing.
type OpenAIModel struct {
	ID      string      `json:"id"`
	Object  string      `json:"object"`
	Created int64       `json:"created"`
	OwnedBy string      `json:"owned_by"`
	Root    string      `json:"root,omitempty"`
	Parent  interface{} `json:"parent"`
}

// ModelList is the OpenAI-compatible listing envelope.
type ModelList struct {
	Object string        `json:"object"`
	Data   []OpenAIModel `json:"data"`
}
