package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revlens/revlens/internal/metrics/domain/model"
)

func monthlySub(id, customer, priceID string, unitAmount, quantity int64, anchor time.Time) model.Subscription {
	return model.Subscription{
		ID:                 id,
		CustomerID:         customer,
		Status:             model.SubscriptionStatusActive,
		BillingCycleAnchor: anchor,
		Items: []model.LineItem{
			{
				Price:    model.Price{ID: priceID, UnitAmount: unitAmount, Interval: model.IntervalMonth},
				Quantity: quantity,
			},
		},
	}
}

func TestProjectedRevenueSingleMonthlySubscription(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	billing := &stubBilling{
		active: []model.Subscription{
			monthlySub("sub_1", "cus_1", "price_pro_monthly", 2000, 1, anchor),
		},
	}
	svc := newTestRevenueService(billing, nil)

	result, err := svc.ProjectedRevenue(context.Background(), "sk_test_123")
	require.NoError(t, err)

	assert.InDelta(t, 20.00, result.TotalMRR, 1e-9)
	assert.Equal(t, 1, result.UniqueUsersCount)
	assert.InDelta(t, 20.00, result.RevenueByDate["2026-04-10"], 1e-9)

	require.Len(t, result.PlanBreakdown, 1)
	assert.Equal(t, "Pro", result.PlanBreakdown[0].Plan)
	assert.InDelta(t, 20.00, result.PlanBreakdown[0].Amount, 1e-9)
}

func TestProjectedRevenueBucketsTwoDistinctCycles(t *testing.T) {
	// Each retained subscription contributes to two future dates: the next
	// invoice one month past the anchor, and the cycle after it. The old
	// behavior of doubling a single bucket is gone.
	anchor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	billing := &stubBilling{
		active: []model.Subscription{
			monthlySub("sub_1", "cus_1", "price_pro_monthly", 2000, 1, anchor),
		},
	}
	svc := newTestRevenueService(billing, nil)

	result, err := svc.ProjectedRevenue(context.Background(), "sk_test_123")
	require.NoError(t, err)

	require.Len(t, result.RevenueByDate, 2)
	assert.InDelta(t, 20.00, result.RevenueByDate["2026-04-10"], 1e-9)
	assert.InDelta(t, 20.00, result.RevenueByDate["2026-05-10"], 1e-9)
}

func TestProjectedRevenueSkipsCancelScheduled(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	canceling := monthlySub("sub_2", "cus_2", "price_pro_monthly", 5000, 1, anchor)
	canceling.CancelAtPeriodEnd = true

	billing := &stubBilling{
		active: []model.Subscription{
			monthlySub("sub_1", "cus_1", "price_starter_monthly", 1000, 1, anchor),
			canceling,
		},
	}
	svc := newTestRevenueService(billing, nil)

	result, err := svc.ProjectedRevenue(context.Background(), "sk_test_123")
	require.NoError(t, err)

	assert.InDelta(t, 10.00, result.TotalMRR, 1e-9)
	assert.Equal(t, 1, result.UniqueUsersCount)
}

func TestProjectedRevenueUnknownPlanCountsTowardTotals(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	billing := &stubBilling{
		active: []model.Subscription{
			monthlySub("sub_1", "cus_1", "price_legacy_grandfathered", 2000, 1, anchor),
		},
	}
	svc := newTestRevenueService(billing, nil)

	result, err := svc.ProjectedRevenue(context.Background(), "sk_test_123")
	require.NoError(t, err)

	assert.InDelta(t, 20.00, result.TotalMRR, 1e-9)
	assert.Empty(t, result.PlanBreakdown)
}

func TestProjectedRevenueIsIdempotent(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	billing := &stubBilling{
		active: []model.Subscription{
			monthlySub("sub_1", "cus_1", "price_pro_monthly", 2000, 1, anchor),
			monthlySub("sub_2", "cus_2", "price_starter_monthly", 1000, 2, anchor),
		},
	}
	svc := newTestRevenueService(billing, nil)

	first, err := svc.ProjectedRevenue(context.Background(), "sk_test_123")
	require.NoError(t, err)
	second, err := svc.ProjectedRevenue(context.Background(), "sk_test_123")
	require.NoError(t, err)

	assert.Equal(t, first.TotalMRR, second.TotalMRR)
	assert.Equal(t, first.RevenueByDate, second.RevenueByDate)
	assert.Equal(t, first.PlanBreakdown, second.PlanBreakdown)
	assert.Equal(t, first.UniqueUsersCount, second.UniqueUsersCount)
}

func TestProjectedRevenueBucketSumMayDivergeFromTotalMRR(t *testing.T) {
	// The date buckets and totalMRR are different projections of the same
	// records: each subscription lands in two buckets but counts once in
	// totalMRR. The two numbers are allowed to diverge.
	anchor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	billing := &stubBilling{
		active: []model.Subscription{
			monthlySub("sub_1", "cus_1", "price_pro_monthly", 2000, 1, anchor),
		},
	}
	svc := newTestRevenueService(billing, nil)

	result, err := svc.ProjectedRevenue(context.Background(), "sk_test_123")
	require.NoError(t, err)

	var bucketSum float64
	for _, v := range result.RevenueByDate {
		bucketSum += v
	}
	assert.NotEqual(t, result.TotalMRR, bucketSum)
}

func TestProjectedRevenueMissingKeyIsHardFailure(t *testing.T) {
	billing := &stubBilling{}
	svc := newTestRevenueService(billing, nil)

	_, err := svc.ProjectedRevenue(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrMissingAPIKey)
	// No provider call is attempted
	assert.Zero(t, billing.listCalls)
}

func TestProjectedRevenueUpstreamFailure(t *testing.T) {
	billing := &stubBilling{listErr: errors.New("rate limit exceeded")}
	svc := newTestRevenueService(billing, nil)

	result, err := svc.ProjectedRevenue(context.Background(), "sk_test_123")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestProjectedRevenueTrendAgainstPreviousSnapshot(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	billing := &stubBilling{
		active: []model.Subscription{
			monthlySub("sub_1", "cus_1", "price_pro_monthly", 2200, 1, anchor),
		},
	}
	snapshots := &stubSnapshots{latest: &model.Snapshot{TotalMRR: 20.00}}
	svc := newTestRevenueService(billing, snapshots)

	result, err := svc.ProjectedRevenue(context.Background(), "sk_test_123")
	require.NoError(t, err)

	require.NotNil(t, result.MRRTrendPct)
	assert.InDelta(t, 10.0, *result.MRRTrendPct, 1e-9)
}

func TestProjectedRevenueTrendAbsentWithoutHistory(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	billing := &stubBilling{
		active: []model.Subscription{
			monthlySub("sub_1", "cus_1", "price_pro_monthly", 2000, 1, anchor),
		},
	}
	svc := newTestRevenueService(billing, &stubSnapshots{})

	result, err := svc.ProjectedRevenue(context.Background(), "sk_test_123")
	require.NoError(t, err)
	assert.Nil(t, result.MRRTrendPct)
}
