package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"blocklab-backend/internal/models"
	"blocklab-backend/internal/services"
)

type TelemetryHandler struct {
	telemetry *services.TelemetryService
}

func NewTelemetryHandler(telemetry *services.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{telemetry: telemetry}
}

// telemetryRequest is the shared ingestion body; kind-specific fields are
// simply absent for kinds that do not use them. Blob data arrives base64
// encoded and decodes via encoding/json's []byte handling.
type telemetryRequest struct {
	User       int64           `json:"user"`
	Experiment int64           `json:"experiment"`
	Secret     string          `json:"secret"`
	Time       string          `json:"time"`
	Type       string          `json:"type"`
	Event      string          `json:"event"`
	Code       string          `json:"code"`
	Project    json.RawMessage `json:"project"`
	Name       string          `json:"name"`
	Data       []byte          `json:"data"`
}

func (h *TelemetryHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, models.EventBlock)
}

func (h *TelemetryHandler) Click(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, models.EventClick)
}

func (h *TelemetryHandler) Debugger(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, models.EventDebugger)
}

func (h *TelemetryHandler) Question(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, models.EventQuestion)
}

func (h *TelemetryHandler) Resource(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, models.EventResource)
}

func (h *TelemetryHandler) File(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, models.EventFile)
}

func (h *TelemetryHandler) Zip(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, models.EventZip)
}

// ingest appends one event. Malformed bodies and unparseable timestamps are
// swallowed as no-op successes: the editor fires telemetry blindly and must
// never see ingestion errors.
func (h *TelemetryHandler) ingest(w http.ResponseWriter, r *http.Request, kind models.EventKind) {
	var req telemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
		return
	}

	occurredAt, err := time.Parse(time.RFC3339, req.Time)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
		return
	}

	event := &models.Event{
		ExperimentID: req.Experiment,
		UserID:       req.User,
		OccurredAt:   occurredAt,
		Kind:         kind,
		Type:         req.Type,
		Event:        req.Event,
		Code:         req.Code,
		Project:      req.Project,
		BlobName:     req.Name,
		Blob:         req.Data,
	}

	if err := h.telemetry.Append(r.Context(), event, req.Secret); err != nil {
		var invalid *services.InvalidParticipantError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Forbidden", r))
			return
		}
		log.Printf("telemetry append failed (kind=%s): %v", kind, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Something went wrong", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}
