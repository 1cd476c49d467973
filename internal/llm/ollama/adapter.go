package ollama

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

func init() {
	llm.Register("ollama", NewAdapter)
}

type Adapter struct {
	cfg    llm.Config
	client *http.Client
}

func NewAdapter(cfg llm.Config) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (a *Adapter) Type() string { return "ollama" }

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireOptions carries generation parameters under Ollama's options key.
// num_predict is Ollama's name for max_tokens.
type wireOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

func (o wireOptions) empty() bool {
	return o.Temperature == nil && o.TopP == nil && o.NumPredict == nil &&
		o.Seed == nil && len(o.Stop) == 0
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *wireOptions  `json:"options,omitempty"`
}

// wireResponse covers both the unary response and each stream line.
type wireResponse struct {
	Model           string      `json:"model"`
	Message         wireMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
}

func toWire(req *api.ChatRequest) wireRequest {
	wr := wireRequest{
		Model:  req.Model,
		Stream: req.Stream,
	}

	opts := wireOptions{
		Temperature: req.Temperature,
		TopP:        req.TopP,
		NumPredict:  req.MaxTokens,
		Seed:        req.Seed,
	}
	if req.Stop != nil {
		opts.Stop = req.Stop.Val
	}
	if !opts.empty() {
		wr.Options = &opts
	}

	for _, m := range req.Messages {
		content := ""
		if m.Content != nil {
			content = *m.Content
		}
		wr.Messages = append(wr.Messages, wireMessage{Role: m.Role, Content: content})
	}
	return wr
}

func mapFinish(reason string) string {
	if reason == "length" {
		return "length"
	}
	return "stop"
}

func (a *Adapter) endpoint() string {
	return fmt.Sprintf("%s/api/chat", strings.TrimRight(a.cfg.BaseURL, "/"))
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	wr := toWire(req)
	wr.Stream = false

	var resp wireResponse
	if err := httpclient.PostJSON(ctx, a.client, a.endpoint(), nil, wr, &resp); err != nil {
		return nil, err
	}

	return &api.ChatResponse{
		ID:      fmt.Sprintf("ollama-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []api.Choice{{
			Index:        0,
			Message:      &api.Message{Role: "assistant", Content: resp.Message.Content},
			FinishReason: mapFinish(resp.DoneReason),
		}},
		Usage: &api.ResponseUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
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

		// Ollama streams newline-delimited JSON, one object per token
		// batch, the final object carrying done plus token counts.
		err := httpclient.StreamLines(ctx, a.client, a.endpoint(), nil, wr, func(line string) error {
			var chunk wireResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				return nil
			}

			if chunk.Done {
				return emit(&api.ChatResponse{
					Object: "chat.completion.chunk",
					Model:  chunk.Model,
					Choices: []api.Choice{{
						Delta:        &api.Message{},
						FinishReason: mapFinish(chunk.DoneReason),
					}},
					Usage: &api.ResponseUsage{
						PromptTokens:     chunk.PromptEvalCount,
						CompletionTokens: chunk.EvalCount,
						TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
					},
				})
			}

			return emit(&api.ChatResponse{
				Object: "chat.completion.chunk",
				Model:  chunk.Model,
				Choices: []api.Choice{{
					Delta: &api.Message{Content: chunk.Message.Content},
				}},
			})
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
