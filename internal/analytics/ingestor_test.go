package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/modelmux/modelmux/internal/store"
	"github.com/modelmux/modelmux/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memRepo is an in-memory store.Repository for exercising the ingestor and
// service read paths without sqlite.
type memRepo struct {
	mu       sync.Mutex
	requests []*model.RequestLog
	txCount  int
}

func (r *memRepo) Requests() store.RequestRepository { return &memRequests{repo: r} }
func (r *memRepo) Attempts() store.AttemptRepository { return &memAttempts{} }
func (r *memRepo) Close() error                      { return nil }

func (r *memRepo) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	r.mu.Lock()
	r.txCount++
	r.mu.Unlock()
	return fn(r)
}

type memRequests struct {
	repo *memRepo
}

func (m *memRequests) Log(ctx context.Context, log *model.RequestLog) error {
	m.repo.mu.Lock()
	defer m.repo.mu.Unlock()
	m.repo.requests = append(m.repo.requests, log)
	return nil
}

func (m *memRequests) GetByID(ctx context.Context, id string) (*model.RequestLog, error) {
	m.repo.mu.Lock()
	defer m.repo.mu.Unlock()
	for _, log := range m.repo.requests {
		if log.ID == id {
			return log, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memRequests) GetRecent(ctx context.Context, limit int) ([]model.RequestLog, error) {
	return nil, nil
}

func (m *memRequests) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	return nil, nil
}

type memAttempts struct{}

func (memAttempts) Log(ctx context.Context, attempt *model.AttemptLog) error { return nil }
func (memAttempts) ListByRequest(ctx context.Context, requestID string) ([]model.AttemptLog, error) {
	return nil, nil
}

func TestIngestorFlushesBatchInOneTransaction(t *testing.T) {
	repo := &memRepo{}
	ing := NewIngestor(zap.NewNop(), repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx)

	for _, id := range []string{"req-1", "req-2", "req-3"} {
		ing.Log(&model.RequestLog{ID: id})
	}
	ing.Stop()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.requests) == 3
	}, 2*time.Second, 10*time.Millisecond)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 1, repo.txCount)
}

func TestGetRequestDetail(t *testing.T) {
	repo := &memRepo{requests: []*model.RequestLog{
		{ID: "req-1", SelectedModel: "gpt-4o-mini"},
	}}
	svc := NewService(repo)

	log, err := svc.GetRequestDetail(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", log.SelectedModel)

	_, err = svc.GetRequestDetail(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}
