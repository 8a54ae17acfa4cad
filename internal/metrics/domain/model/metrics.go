package model

import (
	"time"

	"github.com/google/uuid"
)

// RevenueMetrics is the revenue projector's output
type RevenueMetrics struct {
	TotalMRR         float64            `json:"totalMRR"`
	RevenueByDate    map[string]float64 `json:"data"`
	PlanBreakdown    PlanBreakdown      `json:"planBreakdown"`
	UniqueUsersCount int                `json:"uniqueUsersCount"`

	// MRRTrendPct is the percent change versus the previous persisted
	// snapshot. Nil when there is no history to compare against.
	MRRTrendPct *float64 `json:"mrrTrendPct,omitempty"`
}

// ChurnMetrics is the churn aggregator's output
type ChurnMetrics struct {
	CancelingUsersCount int                `json:"cancelingUsersCount"`
	MRRAtRisk           float64            `json:"mrrAtRisk"`
	ChurnsByDate        map[string]float64 `json:"churnsByDate"`
	PlanBreakdown       PlanBreakdown      `json:"planBreakdown"`
}

// CalendarDay is one rendered cell of the projected-revenue calendar
type CalendarDay struct {
	Date        string  `json:"date"`
	Revenue     float64 `json:"revenue"`
	Churn       float64 `json:"churn"`
	Highlighted bool    `json:"highlighted"`
	Profitable  bool    `json:"profitable"`
}

// Snapshot records one refresh's headline numbers so later refreshes can
// compute trends against it
type Snapshot struct {
	ID                  string    `json:"id"`
	TotalMRR            float64   `json:"totalMRR"`
	MRRAtRisk           float64   `json:"mrrAtRisk"`
	UniqueUsersCount    int       `json:"uniqueUsersCount"`
	CancelingUsersCount int       `json:"cancelingUsersCount"`
	TakenAt             time.Time `json:"takenAt"`
}

// NewSnapshot builds a snapshot from the two metric projections
func NewSnapshot(revenue *RevenueMetrics, churn *ChurnMetrics) *Snapshot {
	s := &Snapshot{
		ID:      uuid.New().String(),
		TakenAt: time.Now().UTC(),
	}
	if revenue != nil {
		s.TotalMRR = revenue.TotalMRR
		s.UniqueUsersCount = revenue.UniqueUsersCount
	}
	if churn != nil {
		s.MRRAtRisk = churn.MRRAtRisk
		s.CancelingUsersCount = churn.CancelingUsersCount
	}
	return s
}
