package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelmux/modelmux/internal/httpclient"
	"github.com/modelmux/modelmux/internal/llm"
	"github.com/modelmux/modelmux/pkg/api"
)

func init() {
	llm.Register("openai", NewAdapter)
	// Custom providers speak the OpenAI wire protocol against a
	// caller-supplied endpoint.
	llm.Register("custom", func(cfg llm.Config) (llm.Provider, error) {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("custom provider requires an endpoint override")
		}
		p, err := NewAdapter(cfg)
		if err != nil {
			return nil, err
		}
		return &customAdapter{p}, nil
	})
}

type Adapter struct {
	cfg    llm.Config
	client *http.Client
}

func NewAdapter(cfg llm.Config) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (a *Adapter) Type() string { return "openai" }

type customAdapter struct{ llm.Provider }

func (c *customAdapter) Type() string { return "custom" }

// wireMessage is one upstream conversation turn.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// wireRequest is the upstream chat-completions payload. Router-only fields
// (task_type, strategy, timeout) are deliberately absent.
type wireRequest struct {
	Model            string         `json:"model"`
	Messages         []wireMessage  `json:"messages"`
	Stream           bool           `json:"stream,omitempty"`
	Stop             *api.Stop      `json:"stop,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	N                *int           `json:"n,omitempty"`
	Seed             *int           `json:"seed,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	StreamOptions    *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

func toWire(req *api.ChatRequest) wireRequest {
	wr := wireRequest{
		Model:            req.Model,
		Stream:           req.Stream,
		Stop:             req.Stop,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		N:                req.N,
		Seed:             req.Seed,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
	}
	for _, m := range req.Messages {
		content := ""
		if m.Content != nil {
			content = *m.Content
		}
		wr.Messages = append(wr.Messages, wireMessage{Role: m.Role, Content: content, Name: m.Name})
	}
	return wr
}

// upstreamErrorResponse mirrors the standard OpenAI error shape
type upstreamErrorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

func (a *Adapter) wrapUpstreamError(err error) error {
	var upstreamErr *httpclient.UpstreamError
	if !errors.As(err, &upstreamErr) {
		return err
	}

	var apiErr upstreamErrorResponse
	if jsonErr := json.Unmarshal(upstreamErr.Body, &apiErr); jsonErr != nil || apiErr.Error.Message == "" {
		return err
	}
	return fmt.Errorf("upstream error (%d): %s", upstreamErr.StatusCode, apiErr.Error.Message)
}

func (a *Adapter) headers() map[string]string {
	h := map[string]string{}
	if a.cfg.APIKey != "" {
		h["Authorization"] = "Bearer " + a.cfg.APIKey
	}
	return h
}

func (a *Adapter) endpoint() string {
	return fmt.Sprintf("%s/chat/completions", strings.TrimRight(a.cfg.BaseURL, "/"))
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	wr := toWire(req)
	wr.Stream = false

	var resp api.ChatResponse
	if err := httpclient.PostJSON(ctx, a.client, a.endpoint(), a.headers(), wr, &resp); err != nil {
		return nil, a.wrapUpstreamError(err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &resp, nil
}

func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	wr := toWire(req)
	wr.Stream = true
	wr.StreamOptions = &streamOptions{IncludeUsage: true}

	ch := make(chan api.StreamResult)

	go func() {
		defer close(ch)

		err := httpclient.StreamSSE(ctx, a.client, a.endpoint(), a.headers(), wr, func(data string) error {
			if data == "[DONE]" {
				return nil
			}

			var chunk api.ChatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Skip unparseable chunks rather than killing the stream.
				return nil
			}

			select {
			case ch <- api.StreamResult{Response: &chunk}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		if err != nil {
			select {
			case ch <- api.StreamResult{Err: a.wrapUpstreamError(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}
