// Package model defines the billing records the provider returns and the
// metric projections derived from them.
package model

import (
	"errors"
	"time"
)

// SubscriptionStatus represents the provider-side subscription status
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// BillingInterval represents a price's recurring interval
type BillingInterval string

const (
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
	IntervalNone  BillingInterval = ""
)

// Price references a recurring price attached to a line item
type Price struct {
	ID         string          `json:"id"`
	UnitAmount int64           `json:"unitAmount"` // minor currency units
	Interval   BillingInterval `json:"interval"`
}

// LineItem is one priced item on a subscription
type LineItem struct {
	Price    Price `json:"price"`
	Quantity int64 `json:"quantity"`
}

// Amount returns the item total in minor units
func (li LineItem) Amount() int64 {
	qty := li.Quantity
	if qty < 1 {
		qty = 1
	}
	return li.Price.UnitAmount * qty
}

// MonthlyAmount returns the item total normalized to a monthly basis, in
// minor units. Annual prices divide by 12, non-recurring prices contribute
// nothing.
func (li LineItem) MonthlyAmount() float64 {
	switch li.Price.Interval {
	case IntervalMonth:
		return float64(li.Amount())
	case IntervalYear:
		return float64(li.Amount()) / 12
	default:
		return 0
	}
}

// LifecyclePhase classifies a subscription at aggregation time. Every
// subscription is in exactly one phase.
type LifecyclePhase string

const (
	PhaseActiveStable  LifecyclePhase = "active_stable"
	PhasePendingCancel LifecyclePhase = "active_pending_cancel"
	PhaseCanceled      LifecyclePhase = "canceled"
)

// Subscription is a provider subscription record
type Subscription struct {
	ID                 string             `json:"id"`
	CustomerID         string             `json:"customerId"`
	Status             SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd"`
	BillingCycleAnchor time.Time          `json:"billingCycleAnchor"`
	CanceledAt         *time.Time         `json:"canceledAt,omitempty"`
	Items              []LineItem         `json:"items"`
}

// Phase returns the subscription's lifecycle phase
func (s *Subscription) Phase() LifecyclePhase {
	switch {
	case s.Status == SubscriptionStatusCanceled:
		return PhaseCanceled
	case s.CancelAtPeriodEnd:
		return PhasePendingCancel
	default:
		return PhaseActiveStable
	}
}

// RecurringCharge returns the subscription's total recurring charge in major
// units, with no interval normalization.
func (s *Subscription) RecurringCharge() float64 {
	var total int64
	for _, item := range s.Items {
		total += item.Amount()
	}
	return float64(total) / 100
}

// MonthlyCharge returns the subscription's interval-normalized monthly total
// in major units.
func (s *Subscription) MonthlyCharge() float64 {
	var total float64
	for _, item := range s.Items {
		total += item.MonthlyAmount()
	}
	return total / 100
}

// DateKey formats a timestamp as a YYYY-MM-DD bucket key in the given
// reference zone. Buckets must be keyed in one fixed zone so they are
// deterministic across environments.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02")
}

// Errors
var (
	ErrMissingAPIKey = errors.New("billing API key is required")
)
