package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/revlens/revlens/internal/metrics/domain/model"
	"github.com/revlens/revlens/internal/platform/cache"
	"github.com/revlens/revlens/internal/platform/config"
	"github.com/revlens/revlens/internal/platform/logger"
	"github.com/revlens/revlens/internal/platform/metrics"
)

// ChurnService aggregates subscriptions that are ending or already ended
type ChurnService struct {
	billing   BillingClient
	cache     *cache.RedisCache // optional
	metrics   *metrics.Metrics  // optional
	logger    logger.Logger
	loc       *time.Location
	pageLimit int
	now       func() time.Time
}

// NewChurnService creates a new churn service
func NewChurnService(billing BillingClient, redisCache *cache.RedisCache, m *metrics.Metrics, log logger.Logger, cfg config.BillingConfig) *ChurnService {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("invalid billing timezone, falling back to UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}

	limit := cfg.PageLimit
	if limit <= 0 {
		limit = 100
	}

	return &ChurnService{
		billing:   billing,
		cache:     redisCache,
		metrics:   m,
		logger:    log,
		loc:       loc,
		pageLimit: limit,
		now:       time.Now,
	}
}

// ChurnMetrics returns the churn aggregation, served from cache when a fresh
// snapshot is available.
func (s *ChurnService) ChurnMetrics(ctx context.Context, apiKey string) (*model.ChurnMetrics, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}

	if s.cache != nil {
		var cached model.ChurnMetrics
		err := s.cache.Get(ctx, s.cacheKey(apiKey), &cached)
		if err == nil {
			s.observeCache(true)
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("churn cache read failed", "error", err)
		}
		s.observeCache(false)
	}

	return s.Recompute(ctx, apiKey)
}

// Recompute fetches active and canceled subscriptions and rebuilds the churn
// aggregation from scratch, bypassing any cached copy.
func (s *ChurnService) Recompute(ctx context.Context, apiKey string) (*model.ChurnMetrics, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}

	start := time.Now()

	active, err := s.billing.ListSubscriptions(ctx, apiKey, model.SubscriptionStatusActive, s.pageLimit)
	if err != nil {
		s.observeRun("failure", start)
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}

	canceled, err := s.billing.ListSubscriptions(ctx, apiKey, model.SubscriptionStatusCanceled, s.pageLimit)
	if err != nil {
		s.observeRun("failure", start)
		return nil, fmt.Errorf("failed to list canceled subscriptions: %w", err)
	}

	result := s.aggregate(active, canceled)

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheKey(apiKey), result, 0); err != nil {
			s.logger.Warn("churn cache write failed", "error", err)
		}
	}

	s.observeRun("success", start)
	s.logger.Debug("churn aggregation computed",
		"canceling", result.CancelingUsersCount,
		"mrr_at_risk", result.MRRAtRisk,
	)

	return result, nil
}

func (s *ChurnService) aggregate(active, canceled []model.Subscription) *model.ChurnMetrics {
	cancelingNow := make([]model.Subscription, 0)
	for _, sub := range active {
		if sub.CancelAtPeriodEnd {
			cancelingNow = append(cancelingNow, sub)
		}
	}

	var mrrAtRisk float64
	for i := range cancelingNow {
		mrrAtRisk += cancelingNow[i].MonthlyCharge()
	}

	churned := make([]model.Subscription, 0, len(cancelingNow)+len(canceled))
	churned = append(churned, cancelingNow...)
	churned = append(churned, canceled...)

	churnsByDate := make(map[string]float64)
	planTotals := make(map[string]float64)
	today := model.DateKey(s.now(), s.loc)

	for i := range churned {
		sub := &churned[i]

		// A record without a cancellation timestamp cannot be bucketed by
		// date. Skip it; it still counted toward the totals above.
		if sub.CanceledAt == nil {
			s.logger.Debug("subscription has no cancellation timestamp, skipping date bucket",
				"subscription_id", sub.ID)
			continue
		}

		key := model.DateKey(*sub.CanceledAt, s.loc)
		churnsByDate[key] += sub.MonthlyCharge()

		// Future churns only, attributed to the first line item's plan.
		// Subscriptions are assumed plan-homogeneous for display purposes.
		if key > today && len(sub.Items) > 0 {
			planTotals[model.ResolvePlan(sub.Items[0].Price.ID)] += sub.MonthlyCharge()
		}
	}

	return &model.ChurnMetrics{
		CancelingUsersCount: len(cancelingNow),
		MRRAtRisk:           mrrAtRisk,
		ChurnsByDate:        churnsByDate,
		PlanBreakdown:       model.NewPlanBreakdown(planTotals),
	}
}

func (s *ChurnService) cacheKey(apiKey string) string {
	return "churn:" + keyFingerprint(apiKey)
}

func (s *ChurnService) observeRun(outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.AggregationRuns.WithLabelValues("churn", outcome).Inc()
	s.metrics.AggregationDuration.WithLabelValues("churn").Observe(time.Since(start).Seconds())
}

func (s *ChurnService) observeCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.WithLabelValues("churn").Inc()
	} else {
		s.metrics.CacheMisses.WithLabelValues("churn").Inc()
	}
}
