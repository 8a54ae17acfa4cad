package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revlens/revlens/internal/metrics/app/service"
	"github.com/revlens/revlens/internal/metrics/domain/model"
	"github.com/revlens/revlens/internal/platform/config"
	"github.com/revlens/revlens/internal/platform/logger"
)

type stubBilling struct {
	subs        []model.Subscription
	listErr     error
	validateErr error
}

func (s *stubBilling) ListSubscriptions(_ context.Context, _ string, status model.SubscriptionStatus, _ int) ([]model.Subscription, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if status == model.SubscriptionStatusCanceled {
		return nil, nil
	}
	return s.subs, nil
}

func (s *stubBilling) ValidateKey(_ context.Context, _ string) error {
	return s.validateErr
}

func newTestRouter(billing service.BillingClient, defaultKey string) *mux.Router {
	cfg := config.BillingConfig{BaseURL: "http://localhost", Timezone: "UTC", PageLimit: 100}
	log := logger.NewNop()

	revenue := service.NewRevenueService(billing, nil, nil, nil, log, cfg)
	churn := service.NewChurnService(billing, nil, nil, log, cfg)

	handler := NewMetricsHandler(revenue, churn, billing, nil, nil, defaultKey, log)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func testSubscriptions() []model.Subscription {
	return []model.Subscription{
		{
			ID:                 "sub_1",
			CustomerID:         "cus_1",
			Status:             model.SubscriptionStatusActive,
			BillingCycleAnchor: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Items: []model.LineItem{
				{
					Price:    model.Price{ID: "price_pro_monthly", UnitAmount: 2000, Interval: model.IntervalMonth},
					Quantity: 1,
				},
			},
		},
	}
}

func TestGetProjectedRevenueSuccess(t *testing.T) {
	router := newTestRouter(&stubBilling{subs: testSubscriptions()}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/revenue", nil)
	req.Header.Set("X-API-Key", "sk_test_123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Success          bool               `json:"success"`
		Data             map[string]float64 `json:"data"`
		TotalMRR         float64            `json:"totalMRR"`
		UniqueUsersCount int                `json:"uniqueUsersCount"`
		PlanBreakdown    []struct {
			Plan   string  `json:"plan"`
			Amount float64 `json:"amount"`
		} `json:"planBreakdown"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.True(t, body.Success)
	assert.InDelta(t, 20.00, body.TotalMRR, 1e-9)
	assert.Equal(t, 1, body.UniqueUsersCount)
	assert.InDelta(t, 20.00, body.Data["2026-04-10"], 1e-9)
	assert.InDelta(t, 20.00, body.Data["2026-05-10"], 1e-9)
	require.Len(t, body.PlanBreakdown, 1)
	assert.Equal(t, "Pro", body.PlanBreakdown[0].Plan)
}

func TestGetProjectedRevenueMissingKeyIsUnauthorized(t *testing.T) {
	router := newTestRouter(&stubBilling{subs: testSubscriptions()}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/revenue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
	assert.Nil(t, body["data"])
}

func TestGetProjectedRevenueFallsBackToConfiguredKey(t *testing.T) {
	router := newTestRouter(&stubBilling{subs: testSubscriptions()}, "sk_configured")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/revenue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
}

func TestGetChurnMetricsUpstreamFailureIsDataNotTransport(t *testing.T) {
	router := newTestRouter(&stubBilling{listErr: errors.New("billing provider returned status 500")}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/churn", nil)
	req.Header.Set("X-API-Key", "sk_test_123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "billing provider returned status 500")
	assert.Nil(t, body["data"])
}

func TestGetCalendarMergesRevenueAndChurn(t *testing.T) {
	router := newTestRouter(&stubBilling{subs: testSubscriptions()}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/calendar", nil)
	req.Header.Set("X-API-Key", "sk_test_123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    []struct {
			Date        string  `json:"date"`
			Revenue     float64 `json:"revenue"`
			Highlighted bool    `json:"highlighted"`
			Profitable  bool    `json:"profitable"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.True(t, body.Success)
	require.Len(t, body.Data, 2)
	assert.Equal(t, "2026-04-10", body.Data[0].Date)
	assert.Equal(t, "2026-05-10", body.Data[1].Date)
	assert.True(t, body.Data[0].Profitable)
}

func TestListSnapshotsWithoutRepository(t *testing.T) {
	router := newTestRouter(&stubBilling{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/snapshots", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "snapshot history is not configured", body["error"])
}

func TestValidateKeyEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		validErr  error
		wantCode  int
		wantValid bool
		wantErr   string
	}{
		{
			name:      "valid key",
			body:      `{"apiKey": "sk_test_123"}`,
			wantCode:  http.StatusOK,
			wantValid: true,
		},
		{
			name:      "empty key",
			body:      `{"apiKey": ""}`,
			wantCode:  http.StatusOK,
			wantValid: false,
			wantErr:   "API key is required.",
		},
		{
			name:      "rejected key",
			body:      `{"apiKey": "sk_bad"}`,
			validErr:  errors.New("billing provider error: Invalid API Key provided"),
			wantCode:  http.StatusOK,
			wantValid: false,
			wantErr:   "billing provider error: Invalid API Key provided",
		},
		{
			name:      "malformed body",
			body:      `{not json`,
			wantCode:  http.StatusBadRequest,
			wantValid: false,
			wantErr:   "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubBilling{validateErr: tt.validErr}, "")

			req := httptest.NewRequest(http.MethodPost, "/api/v1/keys/validate", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)

			var body validateKeyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantValid, body.IsValid)
			if tt.wantErr != "" {
				require.NotNil(t, body.Error)
				assert.Equal(t, tt.wantErr, *body.Error)
			} else {
				assert.Nil(t, body.Error)
			}
		})
	}
}
