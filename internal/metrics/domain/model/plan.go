package model

import "sort"

// PlanUnknown is the sentinel for price IDs outside the known catalog. It is
// always stripped from breakdowns before they leave the domain.
const PlanUnknown = "Unknown"

// planCatalog maps provider price IDs to display names. The catalog is fixed;
// anything else resolves to PlanUnknown.
var planCatalog = map[string]string{
	"price_starter_monthly":    "Starter",
	"price_starter_yearly":     "Starter",
	"price_pro_monthly":        "Pro",
	"price_pro_yearly":         "Pro",
	"price_enterprise_monthly": "Enterprise",
	"price_enterprise_yearly":  "Enterprise",
}

// planRank fixes the display order of the known plans. Plans outside the rank
// table sort after them, alphabetically.
var planRank = map[string]int{
	"Starter":    0,
	"Pro":        1,
	"Enterprise": 2,
}

// ResolvePlan maps a price ID to its plan display name. Unknown, empty, or
// malformed IDs resolve to PlanUnknown. Pure lookup, no failure modes.
func ResolvePlan(priceID string) string {
	if name, ok := planCatalog[priceID]; ok {
		return name
	}
	return PlanUnknown
}

// PlanAmount is one entry of a plan breakdown
type PlanAmount struct {
	Plan   string  `json:"plan"`
	Amount float64 `json:"amount"`
}

// PlanBreakdown is a monetary total per plan, in display order. Go maps are
// unordered, so the ordered form is a slice.
type PlanBreakdown []PlanAmount

// NewPlanBreakdown converts accumulated per-plan totals into display order:
// Starter, Pro, Enterprise, then any other known plan alphabetically.
// PlanUnknown is removed.
func NewPlanBreakdown(totals map[string]float64) PlanBreakdown {
	breakdown := make(PlanBreakdown, 0, len(totals))
	for plan, amount := range totals {
		if plan == PlanUnknown {
			continue
		}
		breakdown = append(breakdown, PlanAmount{Plan: plan, Amount: amount})
	}

	sort.Slice(breakdown, func(i, j int) bool {
		ri, iKnown := planRank[breakdown[i].Plan]
		rj, jKnown := planRank[breakdown[j].Plan]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return breakdown[i].Plan < breakdown[j].Plan
		}
	})

	return breakdown
}
