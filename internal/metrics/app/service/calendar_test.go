package service

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighlightThresholdEmpty(t *testing.T) {
	assert.Zero(t, HighlightThreshold(nil))
	assert.Zero(t, HighlightThreshold(map[string]float64{}))
}

func TestHighlightThresholdPicksUpperTier(t *testing.T) {
	revenue := map[string]float64{
		"2026-04-01": 100,
		"2026-04-02": 80,
		"2026-04-03": 60,
		"2026-04-04": 40,
		"2026-04-05": 20,
	}

	// Sorted descending: 100 80 60 40 20; index floor(5*0.4)=2 -> 60
	assert.InDelta(t, 60.0, HighlightThreshold(revenue), 1e-9)
}

func TestHighlightThresholdSingleDay(t *testing.T) {
	assert.InDelta(t, 50.0, HighlightThreshold(map[string]float64{"2026-04-01": 50}), 1e-9)
}

func TestBuildCalendarFlags(t *testing.T) {
	revenue := map[string]float64{
		"2026-04-01": 100,
		"2026-04-02": 80,
		"2026-04-03": 60,
		"2026-04-04": 40,
		"2026-04-05": 20,
	}
	churns := map[string]float64{
		"2026-04-01": 90, // net 10: below watermark, still profitable
		"2026-04-05": 30, // net -10: loss day
		"2026-04-06": 15, // churn-only day
	}

	days := BuildCalendar(revenue, churns)
	require.Len(t, days, 6)

	byDate := make(map[string]int, len(days))
	for i, day := range days {
		byDate[day.Date] = i
	}

	first := days[byDate["2026-04-01"]]
	assert.False(t, first.Highlighted)
	assert.True(t, first.Profitable)

	second := days[byDate["2026-04-02"]]
	assert.True(t, second.Highlighted)
	assert.True(t, second.Profitable)

	loss := days[byDate["2026-04-05"]]
	assert.False(t, loss.Highlighted)
	assert.False(t, loss.Profitable)
	assert.InDelta(t, 30.0, loss.Churn, 1e-9)

	// A day with churn but no revenue never highlights
	churnOnly := days[byDate["2026-04-06"]]
	assert.False(t, churnOnly.Highlighted)
	assert.False(t, churnOnly.Profitable)
	assert.Zero(t, churnOnly.Revenue)
}

func TestBuildCalendarSortedChronologically(t *testing.T) {
	revenue := map[string]float64{
		"2026-04-20": 10,
		"2026-03-01": 10,
		"2026-12-31": 10,
	}

	days := BuildCalendar(revenue, nil)

	assert.True(t, sort.SliceIsSorted(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	}))
}

func TestBuildCalendarAllZeroRevenueNeverHighlights(t *testing.T) {
	revenue := map[string]float64{
		"2026-04-01": 0,
		"2026-04-02": 0,
	}

	for _, day := range BuildCalendar(revenue, nil) {
		assert.False(t, day.Highlighted)
	}
}
