// Package groq serves the OpenAI wire protocol on Groq's endpoint.
package groq

import (
	"github.com/modelmux/modelmux/internal/llm"
	"github.com/modelmux/modelmux/internal/llm/openai"
)

func init() {
	llm.Register("groq", NewAdapter)
}

type Adapter struct{ llm.Provider }

func (a *Adapter) Type() string { return "groq" }

func NewAdapter(cfg llm.Config) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	p, err := openai.NewAdapter(cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{p}, nil
}
