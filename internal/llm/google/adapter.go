package google

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
	llm.Register("google", NewAdapter)
}

type Adapter struct {
	cfg    llm.Config
	client *http.Client
}

func NewAdapter(cfg llm.Config) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (a *Adapter) Type() string { return "google" }

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
}

// toWire converts the unified request to the Gemini content shape. System
// turns become the systemInstruction, assistant turns map to the "model"
// role, everything else stays "user".
func toWire(req *api.ChatRequest) geminiRequest {
	gr := geminiRequest{}

	for _, m := range req.Messages {
		text := ""
		if m.Content != nil {
			text = *m.Content
		}
		switch m.Role {
		case "system":
			if gr.SystemInstruction == nil {
				gr.SystemInstruction = &geminiContent{}
			}
			gr.SystemInstruction.Parts = append(gr.SystemInstruction.Parts, geminiPart{Text: text})
		case "assistant":
			gr.Contents = append(gr.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: text}},
			})
		default:
			gr.Contents = append(gr.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: text}},
			})
		}
	}

	if req.Temperature != nil || req.TopP != nil || req.MaxTokens != nil || req.Stop != nil {
		gc := &generationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
		}
		if req.Stop != nil {
			gc.StopSequences = req.Stop.Val
		}
		gr.GenerationConfig = gc
	}

	return gr
}

func mapFinish(reason string) string {
	switch reason {
	case "MAX_TOKENS":
		return "length"
	case "", "STOP", "FINISH_REASON_UNSPECIFIED":
		return "stop"
	default:
		return "content_filter"
	}
}

func candidateText(resp *geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	text := ""
	for _, p := range resp.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(a.cfg.BaseURL, "/"),
		req.Model,
		a.cfg.APIKey,
	)

	var gResp geminiResponse
	if err := httpclient.PostJSON(ctx, a.client, url, nil, toWire(req), &gResp); err != nil {
		return nil, err
	}

	if len(gResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates from gemini")
	}

	out := &api.ChatResponse{
		ID:      fmt.Sprintf("gemini-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []api.Choice{{
			Index:        0,
			Message:      &api.Message{Role: "assistant", Content: candidateText(&gResp)},
			FinishReason: mapFinish(gResp.Candidates[0].FinishReason),
		}},
	}
	if gResp.UsageMetadata != nil {
		out.Usage = &api.ResponseUsage{
			PromptTokens:     gResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: gResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gResp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?key=%s&alt=sse",
		strings.TrimRight(a.cfg.BaseURL, "/"),
		req.Model,
		a.cfg.APIKey,
	)

	ch := make(chan api.StreamResult)

	go func() {
		defer close(ch)

		err := httpclient.StreamSSE(ctx, a.client, url, nil, toWire(req), func(data string) error {
			var gResp geminiResponse
			if err := json.Unmarshal([]byte(data), &gResp); err != nil {
				return nil
			}
			if len(gResp.Candidates) == 0 {
				return nil
			}

			chunk := &api.ChatResponse{
				Object: "chat.completion.chunk",
				Model:  req.Model,
				Choices: []api.Choice{{
					Delta: &api.Message{Content: candidateText(&gResp)},
				}},
			}
			if reason := gResp.Candidates[0].FinishReason; reason != "" {
				chunk.Choices[0].FinishReason = mapFinish(reason)
			}

			select {
			case ch <- api.StreamResult{Response: chunk}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
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
