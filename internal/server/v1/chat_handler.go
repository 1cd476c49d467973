package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/modelmux/modelmux/internal/analytics"
	"github.com/modelmux/modelmux/internal/engine"
	"github.com/modelmux/modelmux/internal/selector"
	"github.com/modelmux/modelmux/internal/server/validator"
	"github.com/modelmux/modelmux/pkg/api"
)

type ChatHandler struct {
	engine   *engine.Engine
	ingestor analytics.Ingestor
}

// NewChatHandler builds the chat completions handler. ingestor may be nil
// when analytics persistence is disabled.
func NewChatHandler(eng *engine.Engine, ingestor analytics.Ingestor) *ChatHandler {
	return &ChatHandler{
		engine:   eng,
		ingestor: ingestor,
	}
}

func (h *ChatHandler) CreateCompletion(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// returns RFC compliant error
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}

	if req.Stream {
		h.handleStream(c, &req)
		return
	}

	result, err := h.engine.Execute(c.Request.Context(), &req)
	if err != nil {
		h.failCompletion(c, &req, err)
		return
	}

	resp := result.Response
	resp.Metadata = &api.ResponseMetadata{
		SelectedModel:    result.Descriptor.ID,
		SelectedProvider: string(result.Descriptor.Provider),
		LatencyMS:        result.Latency.Milliseconds(),
		CostPer1KTokens:  result.Descriptor.CostPer1KTokens,
	}
	writeSelectionHeaders(c, result)

	h.record(c, &req, result, nil, http.StatusOK)
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) handleStream(c *gin.Context, req *api.ChatRequest) {
	streamChan, result, err := h.engine.ExecuteStream(c.Request.Context(), req)
	if err != nil {
		h.failCompletion(c, req, err)
		return
	}

	// set headers for sse
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Transfer-Encoding", "chunked")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	writeSelectionHeaders(c, result)

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	h.record(c, req, result, nil, http.StatusOK)

	// consume the channel and flush to the client
	c.Stream(func(w io.Writer) bool {
		res, ok := <-streamChan
		if !ok {
			// channel is closed
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}

		if res.Err != nil {
			errResp := api.ChatResponse{
				Choices: []api.Choice{{
					FinishReason: "error",
				}},
				Error: &api.ErrorResponse{Message: res.Err.Error()},
			}
			data, _ := json.Marshal(errResp)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			// stream is committed; stop without fallback
			return false
		}

		if res.Response != nil {
			data, err := json.Marshal(res.Response)
			if err == nil {
				_, err := fmt.Fprintf(w, "data: %s\n\n", data)
				return err == nil
			}
		}

		return true
	})
}

// failCompletion maps execution errors to problems and records the failed
// request.
func (h *ChatHandler) failCompletion(c *gin.Context, req *api.ChatRequest, err error) {
	if errors.Is(err, selector.ErrNoCandidates) {
		_ = c.Error(api.NoProvidersError())
		h.record(c, req, nil, nil, http.StatusServiceUnavailable)
		return
	}

	var allFailed *engine.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		detail := fmt.Sprintf("All providers failed after %d attempts.", allFailed.Attempts)
		_ = c.Error(api.UpstreamError(detail, allFailed.LastErr))
		h.record(c, req, nil, allFailed.Trail, http.StatusBadGateway)
		return
	}

	_ = c.Error(err)
	h.record(c, req, nil, nil, http.StatusInternalServerError)
}

func (h *ChatHandler) record(c *gin.Context, req *api.ChatRequest, result *engine.Result, trail []engine.AttemptEvent, status int) {
	if h.ingestor == nil {
		return
	}
	h.ingestor.Log(analytics.BuildRequestLog(req, result, trail, status, c.ClientIP()))
}

func writeSelectionHeaders(c *gin.Context, result *engine.Result) {
	c.Writer.Header().Set("X-Selected-Model", result.Descriptor.ID)
	c.Writer.Header().Set("X-Selected-Provider", string(result.Descriptor.Provider))
	c.Writer.Header().Set("X-Latency-Ms", strconv.FormatInt(result.Latency.Milliseconds(), 10))
}
