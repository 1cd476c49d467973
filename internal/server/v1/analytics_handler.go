package v1

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/modelmux/modelmux/internal/analytics"
	"github.com/modelmux/modelmux/internal/store"
	"github.com/modelmux/modelmux/pkg/api"
)

type AnalyticsHandler struct {
	service analytics.Service
}

func NewAnalyticsHandler(service analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Usage returns daily aggregates for the last ?days days.
func (h *AnalyticsHandler) Usage(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))

	stats, err := h.service.GetUsageOverview(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"object": "list", "data": stats})
}

// Requests returns the most recent request logs.
func (h *AnalyticsHandler) Requests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	logs, err := h.service.GetRecentRequests(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"object": "list", "data": logs})
}

// RequestByID returns one request log including its fallback attempts.
func (h *AnalyticsHandler) RequestByID(c *gin.Context) {
	id := c.Param("id")

	log, err := h.service.GetRequestDetail(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = c.Error(api.NotFoundError(fmt.Sprintf("Request %q is not recorded.", id)))
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, log)
}
