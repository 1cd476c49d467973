package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/modelmux/modelmux/internal/engine"
	"github.com/modelmux/modelmux/internal/store"
	"github.com/modelmux/modelmux/internal/store/model"
	"github.com/modelmux/modelmux/pkg/api"
)

type Service interface {
	GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error)
	GetRecentRequests(ctx context.Context, limit int) ([]model.RequestLog, error)
	GetRequestDetail(ctx context.Context, id string) (*model.RequestLog, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error) {
	if days <= 0 {
		days = 7 // default to last week
	}
	return s.repo.Requests().GetDailyStats(ctx, days)
}

func (s *service) GetRecentRequests(ctx context.Context, limit int) ([]model.RequestLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.Requests().GetRecent(ctx, limit)
}

// GetRequestDetail returns one request log with its attempt chain.
// store.ErrNotFound passes through for the handler to map.
func (s *service) GetRequestDetail(ctx context.Context, id string) (*model.RequestLog, error) {
	return s.repo.Requests().GetByID(ctx, id)
}

// BuildRequestLog flattens an execution result into the persisted shape.
// On failure result is nil and the trail carries the attempted providers.
func BuildRequestLog(req *api.ChatRequest, result *engine.Result, trail []engine.AttemptEvent, statusCode int, clientIP string) *model.RequestLog {
	log := &model.RequestLog{
		ID:             uuid.NewString(),
		RequestedModel: req.Model,
		Strategy:       req.Strategy,
		TaskType:       req.TaskType,
		StatusCode:     statusCode,
		IsStreamed:     req.Stream,
		IPAddress:      clientIP,
		CreatedAt:      time.Now().UTC(),
	}

	if result != nil {
		log.SelectedModel = result.Descriptor.ID
		log.Provider = string(result.Descriptor.Provider)
		log.MatchKind = string(result.Selection.MatchKind)
		log.LatencyMS = result.Latency.Milliseconds()
		log.Attempts = result.Attempts
		if result.Response != nil && result.Response.Usage != nil {
			log.InputTokens = result.Response.Usage.PromptTokens
			log.OutputTokens = result.Response.Usage.CompletionTokens
		}
		trail = result.Trail
	} else {
		log.Attempts = len(trail)
	}

	for _, ev := range trail {
		attempt := model.AttemptLog{
			ID:        uuid.NewString(),
			RequestID: log.ID,
			ModelID:   ev.Model,
			Provider:  ev.Provider,
			Attempt:   ev.Attempt,
			LatencyMS: ev.Duration.Milliseconds(),
			Succeeded: ev.Err == nil,
			CreatedAt: log.CreatedAt,
		}
		if ev.Err != nil {
			attempt.Error = ev.Err.Error()
		}
		log.AttemptLogs = append(log.AttemptLogs, attempt)
	}

	return log
}
