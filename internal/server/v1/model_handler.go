package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelmux/modelmux/internal/discovery"
	"github.com/modelmux/modelmux/internal/dynamic"
	"github.com/modelmux/modelmux/internal/engine"
	"github.com/modelmux/modelmux/internal/registry"
	"github.com/modelmux/modelmux/internal/server/validator"
	"github.com/modelmux/modelmux/pkg/api"
)

// ModelTester verifies a descriptor is actually callable before it is
// persisted. Injected in tests.
type ModelTester func(ctx context.Context, d registry.ModelDescriptor) error

type ModelHandler struct {
	store   *registry.Store
	adapter *dynamic.Adapter
	scanner *discovery.Scanner
	test    ModelTester
}

func NewModelHandler(store *registry.Store, adapter *dynamic.Adapter, scanner *discovery.Scanner, tester ModelTester) *ModelHandler {
	if tester == nil {
		tester = liveTest
	}
	return &ModelHandler{
		store:   store,
		adapter: adapter,
		scanner: scanner,
		test:    tester,
	}
}

// liveTest issues a one-token completion against the descriptor.
func liveTest(ctx context.Context, d registry.ModelDescriptor) error {
	provider, err := engine.DefaultProviderFactory(d, 15*time.Second)
	if err != nil {
		return err
	}

	content := "ping"
	maxTokens := 1
	_, err = provider.Chat(ctx, &api.ChatRequest{
		Model:     d.ID,
		Messages:  []api.ChatMessage{{Role: "user", Content: &content}},
		MaxTokens: &maxTokens,
	})
	return err
}

// ListModels returns the detailed registry listing.
func (h *ModelHandler) ListModels(c *gin.Context) {
	snapshot := h.store.Snapshot()

	models := make([]api.ModelInfo, 0, len(snapshot))
	for _, d := range snapshot {
		models = append(models, api.ModelInfo{
			ID:              d.ID,
			Provider:        string(d.Provider),
			Priority:        d.Priority,
			CostPer1KTokens: d.CostPer1KTokens,
			TaskTypes:       d.TaskTypes,
			MaxTokens:       d.MaxTokens,
			Available:       true,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   models,
	})
}

// ListOpenAIModels returns the OpenAI-compatible /v1/models listing.
func (h *ModelHandler) ListOpenAIModels(c *gin.Context) {
	snapshot := h.store.Snapshot()

	out := api.ModelList{Object: "list", Data: make([]api.OpenAIModel, 0, len(snapshot))}
	for _, d := range snapshot {
		created := d.AddedAt.Unix()
		if d.AddedAt.IsZero() {
			created = time.Now().Unix()
		}
		out.Data = append(out.Data, api.OpenAIModel{
			ID:      d.ID,
			Object:  "model",
			Created: created,
			OwnedBy: string(d.Provider),
			Root:    d.ID,
		})
	}

	c.JSON(http.StatusOK, out)
}

// RegisterModel validates, live-tests and persists a dynamic model.
func (h *ModelHandler) RegisterModel(c *gin.Context) {
	var req api.RegisterModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}

	d := registry.ModelDescriptor{
		ID:               req.Model,
		Provider:         registry.Provider(req.Provider),
		CredentialRef:    req.Credential,
		EndpointOverride: req.Endpoint,
		MaxTokens:        4096,
		Origin:           registry.OriginDynamic,
		AddedAt:          time.Now().UTC(),
	}
	if req.Priority != nil {
		d.Priority = *req.Priority
	}
	if req.CostPer1KTokens != nil {
		d.CostPer1KTokens = *req.CostPer1KTokens
	}
	if req.MaxTokens != nil {
		d.MaxTokens = *req.MaxTokens
	}
	d.TaskTypes = req.TaskTypes

	if err := d.Normalize(); err != nil {
		_ = c.Error(api.BadRequestError(err.Error()))
		return
	}

	if err := h.test(c.Request.Context(), d); err != nil {
		_ = c.Error(api.RegistrationError(
			fmt.Sprintf("Model %q did not answer a test completion.", d.ID), err))
		return
	}

	if err := h.persist(c, d); err != nil {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"registered": d.ID,
		"provider":   string(d.Provider),
	})
}

// DeregisterModel removes a dynamic model. Static models reappear on every
// refresh, so removing one is rejected outright.
func (h *ModelHandler) DeregisterModel(c *gin.Context) {
	id := c.Param("id")

	var found *registry.ModelDescriptor
	for _, d := range h.store.Snapshot() {
		if d.ID == id {
			found = &d
			break
		}
	}
	if found == nil {
		_ = c.Error(api.NotFoundError(fmt.Sprintf("Model %q is not registered.", id)))
		return
	}
	if found.Origin == registry.OriginStatic {
		_ = c.Error(api.BadRequestError("Static models cannot be removed via the API."))
		return
	}

	if err := h.adapter.Deregister(c.Request.Context(), id); err != nil {
		if errors.Is(err, dynamic.ErrStoreUnavailable) {
			_ = c.Error(api.StoreUnavailableError(err))
			return
		}
		_ = c.Error(err)
		return
	}
	_ = h.adapter.Refresh(c.Request.Context(), h.store)

	c.Status(http.StatusNoContent)
}

// DiscoverModels scans a peer server and registers everything it serves.
func (h *ModelHandler) DiscoverModels(c *gin.Context) {
	var req api.DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}

	found, err := h.scanner.Scan(c.Request.Context(), req.BaseURL, discovery.Flavor(req.Flavor))
	if err != nil {
		_ = c.Error(api.RegistrationError(
			fmt.Sprintf("Discovery against %s failed.", req.BaseURL), err))
		return
	}

	registered, failed, err := h.adapter.RegisterDiscovered(c.Request.Context(), found)
	if err != nil {
		if errors.Is(err, dynamic.ErrStoreUnavailable) {
			_ = c.Error(api.StoreUnavailableError(err))
			return
		}
		_ = c.Error(err)
		return
	}
	_ = h.adapter.Refresh(c.Request.Context(), h.store)

	c.JSON(http.StatusOK, gin.H{
		"discovered": len(found),
		"registered": len(registered),
		"failed":     failed,
		"models":     registered,
	})
}

// persist writes a dynamic descriptor and refreshes the snapshot, mapping
// store outages to 503. Attaches the problem itself and reports whether
// the caller should stop.
func (h *ModelHandler) persist(c *gin.Context, d registry.ModelDescriptor) error {
	if err := h.adapter.Register(c.Request.Context(), d); err != nil {
		if errors.Is(err, dynamic.ErrStoreUnavailable) {
			_ = c.Error(api.StoreUnavailableError(err))
		} else {
			_ = c.Error(err)
		}
		return err
	}
	_ = h.adapter.Refresh(c.Request.Context(), h.store)
	return nil
}
