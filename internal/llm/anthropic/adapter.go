package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelmux/modelmux/internal/httpclient"
	"github.com/modelmux/modelmux/internal/llm"
	"github.com/modelmux/modelmux/pkg/api"
)

const apiVersion = "2023-06-01"

func init() {
	llm.Register("anthropic", NewAdapter)
}

type Adapter struct {
	cfg    llm.Config
	client *http.Client
}

func NewAdapter(cfg llm.Config) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (a *Adapter) Type() string { return "anthropic" }

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model         string        `json:"model"`
	Messages      []wireMessage `json:"messages"`
	System        string        `json:"system,omitempty"`
	MaxTokens     int           `json:"max_tokens"`
	Temperature   *float64      `json:"temperature,omitempty"`
	TopP          *float64      `json:"top_p,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
	Stream        bool          `json:"stream,omitempty"`
}

type wireContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type wireResponse struct {
	ID         string        `json:"id"`
	Content    []wireContent `json:"content"`
	Model      string        `json:"model"`
	StopReason string        `json:"stop_reason"`
	Usage      wireUsage     `json:"usage"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	Usage *wireUsage `json:"usage,omitempty"`
}

// toWire converts the unified request to the Anthropic messages shape:
// system turns fold into the system field, everything else passes through
// in order.
func toWire(req *api.ChatRequest) wireRequest {
	wr := wireRequest{
		Model:       req.Model,
		MaxTokens:   4096,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}
	if req.MaxTokens != nil {
		wr.MaxTokens = *req.MaxTokens
	}
	if req.Stop != nil {
		wr.StopSequences = req.Stop.Val
	}

	for _, m := range req.Messages {
		content := ""
		if m.Content != nil {
			content = *m.Content
		}
		if m.Role == "system" {
			if wr.System != "" {
				wr.System += "\n"
			}
			wr.System += content
			continue
		}
		wr.Messages = append(wr.Messages, wireMessage{Role: m.Role, Content: content})
	}
	return wr
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": apiVersion,
	}
}

func (a *Adapter) endpoint() string {
	return fmt.Sprintf("%s/messages", strings.TrimRight(a.cfg.BaseURL, "/"))
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	wr := toWire(req)
	wr.Stream = false

	var resp wireResponse
	if err := httpclient.PostJSON(ctx, a.client, a.endpoint(), a.headers(), wr, &resp); err != nil {
		return nil, err
	}

	text := ""
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}

	finish := "stop"
	if resp.StopReason == "max_tokens" {
		finish = "length"
	}

	return &api.ChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []api.Choice{{
			Index:        0,
			Message:      &api.Message{Role: "assistant", Content: text},
			FinishReason: finish,
		}},
		Usage: &api.ResponseUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	wr := toWire(req)
	wr.Stream = true

	ch := make(chan api.StreamResult)

	go func() {
		defer close(ch)

		emit := func(r *api.ChatResponse) error {
			select {
			case ch <- api.StreamResult{Response: r}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := httpclient.StreamSSE(ctx, a.client, a.endpoint(), a.headers(), wr, func(data string) error {
			var event streamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				return nil
			}

			// Map Anthropic events onto OpenAI-compatible chunks.
			switch event.Type {
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" {
					return emit(&api.ChatResponse{
						Object: "chat.completion.chunk",
						Model:  req.Model,
						Choices: []api.Choice{{
							Delta: &api.Message{Content: event.Delta.Text},
						}},
					})
				}
			case "message_delta":
				if event.Usage != nil {
					return emit(&api.ChatResponse{
						Object: "chat.completion.chunk",
						Usage: &api.ResponseUsage{
							CompletionTokens: event.Usage.OutputTokens,
						},
					})
				}
			case "message_stop":
				return emit(&api.ChatResponse{
					Object: "chat.completion.chunk",
					Choices: []api.Choice{{
						Delta:        &api.Message{},
						FinishReason: "stop",
					}},
				})
			}
			return nil
		})

		if err != nil {
			select {
			case ch <- api.StreamResult{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}
