package service

import (
	"context"

	"github.com/revlens/revlens/internal/metrics/domain/model"
	"github.com/revlens/revlens/internal/metrics/domain/repository"
	"github.com/revlens/revlens/internal/platform/config"
	"github.com/revlens/revlens/internal/platform/logger"
)

// stubBilling is an in-memory BillingClient
type stubBilling struct {
	active      []model.Subscription
	canceled    []model.Subscription
	listErr     error
	validateErr error
	listCalls   int
}

func (s *stubBilling) ListSubscriptions(_ context.Context, _ string, status model.SubscriptionStatus, _ int) ([]model.Subscription, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	if status == model.SubscriptionStatusCanceled {
		return s.canceled, nil
	}
	return s.active, nil
}

func (s *stubBilling) ValidateKey(_ context.Context, _ string) error {
	return s.validateErr
}

// stubSnapshots is an in-memory SnapshotRepository
type stubSnapshots struct {
	latest    *model.Snapshot
	latestErr error
	saved     []*model.Snapshot
}

func (s *stubSnapshots) Save(_ context.Context, snapshot *model.Snapshot) error {
	s.saved = append(s.saved, snapshot)
	return nil
}

func (s *stubSnapshots) Latest(_ context.Context) (*model.Snapshot, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	if s.latest == nil {
		return nil, repository.ErrNoSnapshots
	}
	return s.latest, nil
}

func (s *stubSnapshots) List(_ context.Context, limit int) ([]*model.Snapshot, error) {
	if limit > len(s.saved) {
		limit = len(s.saved)
	}
	return s.saved[:limit], nil
}

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		BaseURL:   "http://localhost",
		Timezone:  "UTC",
		PageLimit: 100,
	}
}

func newTestRevenueService(billing BillingClient, snapshots repository.SnapshotRepository) *RevenueService {
	return NewRevenueService(billing, snapshots, nil, nil, logger.NewNop(), testBillingConfig())
}

func newTestChurnService(billing BillingClient) *ChurnService {
	return NewChurnService(billing, nil, nil, logger.NewNop(), testBillingConfig())
}
