package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"blocklab-backend/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type sessionRequest struct {
	User       int64  `json:"user"`
	Experiment int64  `json:"experiment"`
	Secret     string `json:"secret"`
}

type transitionFunc func(ctx context.Context, userID, experimentID int64, secret string) error

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sessions.Start)
}

func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sessions.Stop)
}

func (h *SessionHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sessions.Restart)
}

func (h *SessionHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.User <= 0 || req.Experiment <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "user and experiment must be positive integers", r))
		return
	}

	if err := fn(r.Context(), req.User, req.Experiment, req.Secret); err != nil {
		handleParticipantError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}
