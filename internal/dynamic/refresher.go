package dynamic

import (
	"context"
	"errors"

	"github.com/modelmux/modelmux/internal/platform/logger"
	"github.com/modelmux/modelmux/internal/registry"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher periodically rebuilds the registry from the external store.
type Refresher struct {
	cron    *cron.Cron
	adapter *Adapter
	store   *registry.Store
}

// NewRefresher schedules a refresh every interval (a duration string such
// as "30s").
func NewRefresher(adapter *Adapter, store *registry.Store, interval string) (*Refresher, error) {
	r := &Refresher{
		cron:    cron.New(),
		adapter: adapter,
		store:   store,
	}

	if _, err := r.cron.AddFunc("@every "+interval, r.refresh); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Refresher) refresh() {
	if err := r.adapter.Refresh(context.Background(), r.store); err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			logger.Warn("Dynamic store unreachable, serving static models only",
				zap.Int("models", r.store.Len()),
			)
			return
		}
		logger.Error("Registry refresh failed", zap.Error(err))
		return
	}
	logger.Debug("Registry refreshed", zap.Int("models", r.store.Len()))
}

func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}
