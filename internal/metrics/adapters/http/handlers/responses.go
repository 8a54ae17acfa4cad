package handlers

import "github.com/revlens/revlens/internal/metrics/domain/model"

// revenueResponse mirrors the dashboard contract: the date buckets ride in
// "data" with the headline numbers alongside.
type revenueResponse struct {
	Success          bool                `json:"success"`
	Data             map[string]float64  `json:"data"`
	TotalMRR         float64             `json:"totalMRR"`
	PlanBreakdown    model.PlanBreakdown `json:"planBreakdown"`
	UniqueUsersCount int                 `json:"uniqueUsersCount"`
	MRRTrendPct      *float64            `json:"mrrTrendPct,omitempty"`
}

// successEnvelope wraps any successful payload
type successEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// failureEnvelope is the one failure shape every endpoint shares. Data is
// always null: callers never receive a partial success.
type failureEnvelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Data    interface{} `json:"data"`
}

type validateKeyRequest struct {
	APIKey string `json:"apiKey"`
}

type validateKeyResponse struct {
	IsValid bool    `json:"isValid"`
	Error   *string `json:"error"`
}
