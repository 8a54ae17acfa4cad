package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/revlens/revlens/internal/metrics/domain/model"
	"github.com/revlens/revlens/internal/metrics/domain/repository"
	"github.com/revlens/revlens/internal/platform/logger"
	"github.com/revlens/revlens/internal/platform/metrics"
)

// Broadcaster pushes refreshed metrics to connected dashboard clients
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// Refresher periodically recomputes both aggregations, persists a snapshot
// for trend history, and notifies realtime subscribers.
type Refresher struct {
	revenue   *RevenueService
	churn     *ChurnService
	snapshots repository.SnapshotRepository // optional
	hub       Broadcaster                   // optional
	metrics   *metrics.Metrics              // optional
	logger    logger.Logger
	apiKey    string
	schedule  string

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewRefresher creates a new snapshot refresher
func NewRefresher(revenue *RevenueService, churn *ChurnService, snapshots repository.SnapshotRepository, hub Broadcaster, m *metrics.Metrics, log logger.Logger, apiKey, schedule string) *Refresher {
	return &Refresher{
		revenue:   revenue,
		churn:     churn,
		snapshots: snapshots,
		hub:       hub,
		metrics:   m,
		logger:    log,
		apiKey:    apiKey,
		schedule:  schedule,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
		),
	}
}

// Start schedules the refresh job. It is a no-op without a configured API
// key: there is nothing to refresh until a credential exists.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if r.apiKey == "" {
		r.logger.Warn("snapshot refresher disabled: no billing API key configured")
		return nil
	}

	if _, err := r.cron.AddFunc(r.schedule, func() { r.Refresh(ctx) }); err != nil {
		return err
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("snapshot refresher started", "schedule", r.schedule)
	return nil
}

// Stop stops the refresher and waits for a running job to finish
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.running = false
	r.logger.Info("snapshot refresher stopped")
}

// Refresh recomputes both aggregations once, persists the snapshot, and
// broadcasts the fresh metrics.
func (r *Refresher) Refresh(ctx context.Context) {
	revenue, err := r.revenue.Recompute(ctx, r.apiKey)
	if err != nil {
		r.fail("revenue refresh failed", err)
		return
	}

	churn, err := r.churn.Recompute(ctx, r.apiKey)
	if err != nil {
		r.fail("churn refresh failed", err)
		return
	}

	if r.snapshots != nil {
		snapshot := model.NewSnapshot(revenue, churn)
		if err := r.snapshots.Save(ctx, snapshot); err != nil {
			r.fail("snapshot persist failed", err)
			return
		}
	}

	if r.metrics != nil {
		r.metrics.SnapshotsTaken.Inc()
	}

	if r.hub != nil {
		r.hub.Broadcast("metrics.refreshed", map[string]interface{}{
			"revenue": revenue,
			"churn":   churn,
		})
	}

	r.logger.Info("metrics snapshot refreshed",
		"total_mrr", revenue.TotalMRR,
		"mrr_at_risk", churn.MRRAtRisk,
	)
}

func (r *Refresher) fail(msg string, err error) {
	if r.metrics != nil {
		r.metrics.SnapshotsFailed.Inc()
	}
	r.logger.Error(msg, "error", err)
}
