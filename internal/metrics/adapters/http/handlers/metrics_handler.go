// Package handlers provides the HTTP API for the metrics service. Aggregation
// failures are returned as data, never as transport errors: every payload
// carries a success flag, and the only hard failure is a missing credential.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/revlens/revlens/internal/metrics/app/service"
	"github.com/revlens/revlens/internal/metrics/domain/model"
	"github.com/revlens/revlens/internal/metrics/domain/repository"
	"github.com/revlens/revlens/internal/metrics/realtime"
	"github.com/revlens/revlens/internal/platform/logger"
)

// MetricsHandler handles metrics HTTP requests
type MetricsHandler struct {
	revenue    *service.RevenueService
	churn      *service.ChurnService
	billing    service.BillingClient
	snapshots  repository.SnapshotRepository // optional
	hub        *realtime.Hub                 // optional
	defaultKey string
	logger     logger.Logger
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(revenue *service.RevenueService, churn *service.ChurnService, billing service.BillingClient, snapshots repository.SnapshotRepository, hub *realtime.Hub, defaultKey string, log logger.Logger) *MetricsHandler {
	return &MetricsHandler{
		revenue:    revenue,
		churn:      churn,
		billing:    billing,
		snapshots:  snapshots,
		hub:        hub,
		defaultKey: defaultKey,
		logger:     log,
	}
}

// RegisterRoutes registers metrics routes
func (h *MetricsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/metrics/revenue", h.GetProjectedRevenue).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/metrics/churn", h.GetChurnMetrics).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/metrics/calendar", h.GetCalendar).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/metrics/snapshots", h.ListSnapshots).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/keys/validate", h.ValidateKey).Methods(http.MethodPost)
	if h.hub != nil {
		router.HandleFunc("/api/v1/ws", h.hub.ServeWS)
	}
}

// GetProjectedRevenue serves the revenue projection
func (h *MetricsHandler) GetProjectedRevenue(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := h.apiKey(w, r)
	if !ok {
		return
	}

	result, err := h.revenue.ProjectedRevenue(r.Context(), apiKey)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, revenueResponse{
		Success:          true,
		Data:             result.RevenueByDate,
		TotalMRR:         result.TotalMRR,
		PlanBreakdown:    result.PlanBreakdown,
		UniqueUsersCount: result.UniqueUsersCount,
		MRRTrendPct:      result.MRRTrendPct,
	})
}

// GetChurnMetrics serves the churn aggregation
func (h *MetricsHandler) GetChurnMetrics(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := h.apiKey(w, r)
	if !ok {
		return
	}

	result, err := h.churn.ChurnMetrics(r.Context(), apiKey)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, successEnvelope{Success: true, Data: result})
}

// GetCalendar serves merged per-day calendar cells for the dashboard
func (h *MetricsHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := h.apiKey(w, r)
	if !ok {
		return
	}

	revenue, err := h.revenue.ProjectedRevenue(r.Context(), apiKey)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	churn, err := h.churn.ChurnMetrics(r.Context(), apiKey)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	days := service.BuildCalendar(revenue.RevenueByDate, churn.ChurnsByDate)
	h.respondJSON(w, http.StatusOK, successEnvelope{Success: true, Data: days})
}

// ListSnapshots serves persisted snapshot history, newest first
func (h *MetricsHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.respondJSON(w, http.StatusOK, failureEnvelope{Success: false, Error: "snapshot history is not configured"})
		return
	}

	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 365 {
			limit = parsed
		}
	}

	snapshots, err := h.snapshots.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list snapshots", "error", err)
		h.respondJSON(w, http.StatusOK, failureEnvelope{Success: false, Error: "failed to load snapshot history"})
		return
	}

	h.respondJSON(w, http.StatusOK, successEnvelope{Success: true, Data: snapshots})
}

// ValidateKey checks a supplied credential against the provider
func (h *MetricsHandler) ValidateKey(w http.ResponseWriter, r *http.Request) {
	var req validateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, validateKeyResponse{IsValid: false, Error: strPtr("invalid request body")})
		return
	}

	if req.APIKey == "" {
		h.respondJSON(w, http.StatusOK, validateKeyResponse{IsValid: false, Error: strPtr("API key is required.")})
		return
	}

	if err := h.billing.ValidateKey(r.Context(), req.APIKey); err != nil {
		h.respondJSON(w, http.StatusOK, validateKeyResponse{IsValid: false, Error: strPtr(err.Error())})
		return
	}

	h.respondJSON(w, http.StatusOK, validateKeyResponse{IsValid: true})
}

// apiKey resolves the credential for a request: the X-API-Key header wins,
// otherwise the configured key. A missing key aborts with 401 before any
// provider call is attempted.
func (h *MetricsHandler) apiKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = h.defaultKey
	}
	if key == "" {
		h.respondJSON(w, http.StatusUnauthorized, failureEnvelope{
			Success: false,
			Error:   model.ErrMissingAPIKey.Error(),
		})
		return "", false
	}
	return key, true
}

// respondFailure converts an aggregation error into the structured failure
// envelope. Upstream failures are data, not transport errors; only a missing
// credential is a hard 401.
func (h *MetricsHandler) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, model.ErrMissingAPIKey) {
		h.respondJSON(w, http.StatusUnauthorized, failureEnvelope{Success: false, Error: err.Error()})
		return
	}

	h.logger.Error("aggregation failed", "path", r.URL.Path, "error", err)
	h.respondJSON(w, http.StatusOK, failureEnvelope{Success: false, Error: err.Error()})
}

func (h *MetricsHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func strPtr(s string) *string { return &s }
