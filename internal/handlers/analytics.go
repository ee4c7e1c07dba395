package handlers

import (
	"net/http"

	"blocklab-backend/internal/services"
)

type AnalyticsHandler struct {
	analytics *services.AnalyticsService
}

func NewAnalyticsHandler(analytics *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) EventCounts(w http.ResponseWriter, r *http.Request) {
	experiment, ok := positiveQueryInt(r, "experiment")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "experiment must be a positive integer", r))
		return
	}
	user, ok := positiveQueryInt(r, "user")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "user must be a positive integer", r))
		return
	}

	counts, err := h.analytics.EventCounts(r.Context(), experiment, user)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"counts": counts})
}

func (h *AnalyticsHandler) CodeCount(w http.ResponseWriter, r *http.Request) {
	experiment, ok := positiveQueryInt(r, "experiment")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "experiment must be a positive integer", r))
		return
	}
	user, ok := positiveQueryInt(r, "user")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "user must be a positive integer", r))
		return
	}

	count, err := h.analytics.DistinctCodeCount(r.Context(), experiment, user)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"distinct_codes": count})
}
