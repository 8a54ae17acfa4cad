package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/revlens/revlens/internal/metrics/domain/model"
	"github.com/revlens/revlens/internal/metrics/domain/repository"
	"github.com/revlens/revlens/internal/platform/cache"
	"github.com/revlens/revlens/internal/platform/config"
	"github.com/revlens/revlens/internal/platform/logger"
	"github.com/revlens/revlens/internal/platform/metrics"
)

// RevenueService projects forward-looking revenue from active subscriptions
type RevenueService struct {
	billing   BillingClient
	snapshots repository.SnapshotRepository // optional, enables MRR trends
	cache     *cache.RedisCache             // optional
	metrics   *metrics.Metrics              // optional
	logger    logger.Logger
	loc       *time.Location
	pageLimit int
}

// NewRevenueService creates a new revenue service
func NewRevenueService(billing BillingClient, snapshots repository.SnapshotRepository, redisCache *cache.RedisCache, m *metrics.Metrics, log logger.Logger, cfg config.BillingConfig) *RevenueService {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("invalid billing timezone, falling back to UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}

	limit := cfg.PageLimit
	if limit <= 0 {
		limit = 100
	}

	return &RevenueService{
		billing:   billing,
		snapshots: snapshots,
		cache:     redisCache,
		metrics:   m,
		logger:    log,
		loc:       loc,
		pageLimit: limit,
	}
}

// ProjectedRevenue returns the projected revenue metrics, served from cache
// when a fresh snapshot is available.
func (s *RevenueService) ProjectedRevenue(ctx context.Context, apiKey string) (*model.RevenueMetrics, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}

	if s.cache != nil {
		var cached model.RevenueMetrics
		err := s.cache.Get(ctx, s.cacheKey(apiKey), &cached)
		if err == nil {
			s.observeCache(true)
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("revenue cache read failed", "error", err)
		}
		s.observeCache(false)
	}

	return s.Recompute(ctx, apiKey)
}

// Recompute fetches active subscriptions and rebuilds the projection from
// scratch, bypassing any cached copy.
func (s *RevenueService) Recompute(ctx context.Context, apiKey string) (*model.RevenueMetrics, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}

	start := time.Now()

	subs, err := s.billing.ListSubscriptions(ctx, apiKey, model.SubscriptionStatusActive, s.pageLimit)
	if err != nil {
		s.observeRun("failure", start)
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}

	result := s.aggregate(subs)
	s.attachTrend(ctx, result)

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheKey(apiKey), result, 0); err != nil {
			s.logger.Warn("revenue cache write failed", "error", err)
		}
	}

	s.observeRun("success", start)
	s.logger.Debug("revenue projection computed",
		"subscriptions", len(subs),
		"total_mrr", result.TotalMRR,
		"unique_users", result.UniqueUsersCount,
	)

	return result, nil
}

// aggregate runs the synchronous projection over in-memory records. Only
// subscriptions not scheduled to cancel contribute.
func (s *RevenueService) aggregate(subs []model.Subscription) *model.RevenueMetrics {
	revenueByDate := make(map[string]float64)
	planTotals := make(map[string]float64)
	users := make(map[string]struct{})
	var totalMRR float64

	for i := range subs {
		sub := &subs[i]
		if sub.CancelAtPeriodEnd {
			continue
		}

		charge := sub.RecurringCharge()
		totalMRR += charge
		users[sub.CustomerID] = struct{}{}

		// The next invoice lands one month past the billing anchor, and the
		// cycle after it one month later still. Day-of-month clamping is
		// whatever AddDate does with short months.
		next := sub.BillingCycleAnchor.AddDate(0, 1, 0)
		revenueByDate[model.DateKey(next, s.loc)] += charge

		afterNext := sub.BillingCycleAnchor.AddDate(0, 2, 0)
		revenueByDate[model.DateKey(afterNext, s.loc)] += charge

		for _, item := range sub.Items {
			planTotals[model.ResolvePlan(item.Price.ID)] += float64(item.Amount()) / 100
		}
	}

	return &model.RevenueMetrics{
		TotalMRR:         totalMRR,
		RevenueByDate:    revenueByDate,
		PlanBreakdown:    model.NewPlanBreakdown(planTotals),
		UniqueUsersCount: len(users),
	}
}

// attachTrend computes the percent change versus the latest persisted
// snapshot. Missing history leaves the trend unset.
func (s *RevenueService) attachTrend(ctx context.Context, result *model.RevenueMetrics) {
	if s.snapshots == nil {
		return
	}

	prev, err := s.snapshots.Latest(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNoSnapshots) {
			s.logger.Warn("failed to load previous snapshot", "error", err)
		}
		return
	}

	if prev.TotalMRR > 0 {
		pct := (result.TotalMRR - prev.TotalMRR) / prev.TotalMRR * 100
		result.MRRTrendPct = &pct
	}
}

func (s *RevenueService) cacheKey(apiKey string) string {
	return "revenue:" + keyFingerprint(apiKey)
}

func (s *RevenueService) observeRun(outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.AggregationRuns.WithLabelValues("revenue", outcome).Inc()
	s.metrics.AggregationDuration.WithLabelValues("revenue").Observe(time.Since(start).Seconds())
}

func (s *RevenueService) observeCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.WithLabelValues("revenue").Inc()
	} else {
		s.metrics.CacheMisses.WithLabelValues("revenue").Inc()
	}
}
