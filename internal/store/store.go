package store

import (
	"context"
	"errors"

	"github.com/modelmux/modelmux/internal/store/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository is the contract for the analytics data layer.
type Repository interface {
	Requests() RequestRepository
	Attempts() AttemptRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type RequestRepository interface {
	// Log stores a completed routed request.
	Log(ctx context.Context, log *model.RequestLog) error
	// GetByID returns a single request log with its attempts.
	GetByID(ctx context.Context, id string) (*model.RequestLog, error)
	// GetRecent returns the last N request logs.
	GetRecent(ctx context.Context, limit int) ([]model.RequestLog, error)
	// GetDailyStats returns aggregated stats grouped by day.
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
}

type AttemptRepository interface {
	// Log records one provider attempt within a request.
	Log(ctx context.Context, attempt *model.AttemptLog) error
	// ListByRequest returns the attempts for a request in order.
	ListByRequest(ctx context.Context, requestID string) ([]model.AttemptLog, error)
}
