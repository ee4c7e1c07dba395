package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"blocklab-backend/internal/models"
	"blocklab-backend/internal/repository"
)

const maxInitialProjectBytes = 32 << 20 // 32 MiB

type ExperimentHandler struct {
	experiments  *repository.ExperimentRepo
	sessions     *repository.SessionRepo
	participants *repository.ParticipantRepo
}

func NewExperimentHandler(
	experiments *repository.ExperimentRepo,
	sessions *repository.SessionRepo,
	participants *repository.ParticipantRepo,
) *ExperimentHandler {
	return &ExperimentHandler{
		experiments:  experiments,
		sessions:     sessions,
		participants: participants,
	}
}

// Create registers a new experiment. Multipart form: title (required),
// gui_url, notify_email, and an optional "project" file holding the initial
// project archive participants start from.
func (h *ExperimentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxInitialProjectBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid multipart form", r))
		return
	}

	title := r.FormValue("title")
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"title": "required"}, r))
		return
	}

	exp := &models.Experiment{Title: title, Active: true}
	if v := r.FormValue("gui_url"); v != "" {
		exp.GUIURL = &v
	}
	if v := r.FormValue("notify_email"); v != "" {
		exp.NotifyEmail = &v
	}

	if file, _, err := r.FormFile("project"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxInitialProjectBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Could not read project file", r))
			return
		}
		exp.InitialProject = data
	}

	if err := h.experiments.Create(r.Context(), exp); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create experiment", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"experiment": exp})
}

func (h *ExperimentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid experiment ID", r))
		return
	}

	exp, err := h.experiments.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load experiment", r))
		return
	}
	if exp == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Experiment not found", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"experiment": exp})
}

func (h *ExperimentHandler) List(w http.ResponseWriter, r *http.Request) {
	experiments, err := h.experiments.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list experiments", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"experiments": experiments})
}

func (h *ExperimentHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid experiment ID", r))
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.experiments.SetActive(r.Context(), id, req.Active); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Experiment not found", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

// RegisterParticipant creates an anonymous participant account plus their
// NOT_STARTED session for this experiment. The fresh secret is returned once,
// here, to the researcher who distributes it; it is never echoed anywhere
// else.
func (h *ExperimentHandler) RegisterParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid experiment ID", r))
		return
	}

	exp, err := h.experiments.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load experiment", r))
		return
	}
	if exp == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Experiment not found", r))
		return
	}

	userID, err := h.participants.Create(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create participant", r))
		return
	}

	session := &models.Session{
		ExperimentID: id,
		UserID:       userID,
		Secret:       uuid.NewString(),
	}
	if err := h.sessions.Create(r.Context(), session); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create session", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":       userID,
		"experiment": id,
		"secret":     session.Secret,
		"gui_url":    exp.GUIURL,
	})
}
