package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelmux/modelmux/internal/registry"
)

type HealthHandler struct {
	store   *registry.Store
	version string
	started time.Time
}

func NewHealthHandler(store *registry.Store, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		version: version,
		started: time.Now(),
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"models":  h.store.Len(),
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"version": h.version,
	})
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "modelmux",
		"version": h.version,
		"docs":    "/v1/chat/completions",
	})
}
