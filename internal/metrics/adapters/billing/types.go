package billing

import (
	"time"

	"github.com/revlens/revlens/internal/metrics/domain/model"
)

// Wire shapes for the provider's subscription list responses.

type subscriptionList struct {
	Data []subscription `json:"data"`
}

type subscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	BillingCycleAnchor int64  `json:"billing_cycle_anchor"`
	CancelAt           *int64 `json:"cancel_at"`
	CanceledAt         *int64 `json:"canceled_at"`
	Items              struct {
		Data []subscriptionItem `json:"data"`
	} `json:"items"`
}

type subscriptionItem struct {
	Quantity int64 `json:"quantity"`
	Price    struct {
		ID         string `json:"id"`
		UnitAmount int64  `json:"unit_amount"`
		Recurring  *struct {
			Interval string `json:"interval"`
		} `json:"recurring"`
	} `json:"price"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (s subscription) toModel() model.Subscription {
	sub := model.Subscription{
		ID:                 s.ID,
		CustomerID:         s.Customer,
		Status:             model.SubscriptionStatus(s.Status),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		BillingCycleAnchor: time.Unix(s.BillingCycleAnchor, 0).UTC(),
		Items:              make([]model.LineItem, 0, len(s.Items.Data)),
	}

	// cancel_at marks a scheduled end, canceled_at a completed one. Either
	// works as the churn timestamp; prefer the scheduled date when present.
	if ts := s.CancelAt; ts != nil {
		t := time.Unix(*ts, 0).UTC()
		sub.CanceledAt = &t
	} else if ts := s.CanceledAt; ts != nil {
		t := time.Unix(*ts, 0).UTC()
		sub.CanceledAt = &t
	}

	for _, item := range s.Items.Data {
		li := model.LineItem{
			Price: model.Price{
				ID:         item.Price.ID,
				UnitAmount: item.Price.UnitAmount,
			},
			Quantity: item.Quantity,
		}
		if item.Price.Recurring != nil {
			li.Price.Interval = model.BillingInterval(item.Price.Recurring.Interval)
		}
		sub.Items = append(sub.Items, li)
	}

	return sub
}
