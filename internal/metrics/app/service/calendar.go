package service

import (
	"sort"

	"github.com/revlens/revlens/internal/metrics/domain/model"
)

// HighlightThreshold returns the revenue watermark for calendar highlighting:
// the value sitting at the 40% index of the day totals sorted descending, so
// roughly the top tier of revenue days clears it. Zero when there are no
// revenue days.
func HighlightThreshold(revenueByDate map[string]float64) float64 {
	if len(revenueByDate) == 0 {
		return 0
	}

	values := make([]float64, 0, len(revenueByDate))
	for _, v := range revenueByDate {
		values = append(values, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))

	return values[len(values)*2/5]
}

// BuildCalendar merges revenue and churn day buckets into ordered calendar
// cells for the dashboard. A day is highlighted when its net revenue clears
// the watermark, and profitable when net revenue is positive.
func BuildCalendar(revenueByDate, churnsByDate map[string]float64) []model.CalendarDay {
	threshold := HighlightThreshold(revenueByDate)

	dates := make(map[string]struct{}, len(revenueByDate)+len(churnsByDate))
	for date := range revenueByDate {
		dates[date] = struct{}{}
	}
	for date := range churnsByDate {
		dates[date] = struct{}{}
	}

	days := make([]model.CalendarDay, 0, len(dates))
	for date := range dates {
		revenue := revenueByDate[date]
		churn := churnsByDate[date]
		net := revenue - churn

		days = append(days, model.CalendarDay{
			Date:        date,
			Revenue:     revenue,
			Churn:       churn,
			Highlighted: revenue > 0 && net >= threshold,
			Profitable:  net > 0,
		})
	}

	// ISO date strings sort chronologically
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })

	return days
}
