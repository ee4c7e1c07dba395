package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blocklab-backend/internal/models"
	"blocklab-backend/internal/services"
)

func newTelemetryHandler(store *testStore) *TelemetryHandler {
	svc := services.NewTelemetryService(store, experimentsOf{store}, store, services.NewUserLocks(), nil)
	return NewTelemetryHandler(svc)
}

func seedRunningSession(store *testStore) {
	now := time.Now()
	store.experiments[3] = &models.Experiment{ID: 3, Active: true}
	store.sessions[[2]int64{3, 2}] = &models.Session{
		ExperimentID: 3, UserID: 2, Secret: "s1", StartedAt: &now,
	}
}

func TestTelemetryBlockAccepted(t *testing.T) {
	store := newTestStore()
	seedRunningSession(store)
	h := newTelemetryHandler(store)

	body := `{"user":2,"experiment":3,"secret":"s1","time":"2026-08-28T10:00:00Z","type":"DRAG","event":"ENDDRAG","code":"xml"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/block", bytes.NewReader([]byte(body)))
	rr := httptest.NewRecorder()

	h.Block(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(store.events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(store.events))
	}
	e := store.events[0]
	if e.Kind != models.EventBlock {
		t.Errorf("expected kind BLOCK, got %s", e.Kind)
	}
	if e.Type != "DRAG" || e.Event != "ENDDRAG" || e.Code != "xml" {
		t.Errorf("unexpected event fields: %+v", e)
	}
	want := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if !e.OccurredAt.Equal(want) {
		t.Errorf("expected occurred_at %v, got %v", want, e.OccurredAt)
	}
}

func TestTelemetrySwallowsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"broken json", `{"user":2,`},
		{"missing time", `{"user":2,"experiment":3,"secret":"s1","type":"DRAG"}`},
		{"unparseable time", `{"user":2,"experiment":3,"secret":"s1","time":"yesterday"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore()
			seedRunningSession(store)
			h := newTelemetryHandler(store)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/block", bytes.NewReader([]byte(tc.body)))
			rr := httptest.NewRecorder()

			h.Block(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("malformed input must be a no-op success, got %d", rr.Code)
			}
			if len(store.events) != 0 {
				t.Errorf("malformed input must not be stored, got %d events", len(store.events))
			}
		})
	}
}

func TestTelemetryRejectsInvalidParticipant(t *testing.T) {
	store := newTestStore()
	seedRunningSession(store)
	h := newTelemetryHandler(store)

	body := `{"user":2,"experiment":3,"secret":"wrong","time":"2026-08-28T10:00:00Z","type":"GREENFLAG"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/click", bytes.NewReader([]byte(body)))
	rr := httptest.NewRecorder()

	h.Click(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if len(store.events) != 0 {
		t.Errorf("rejected event must not be stored")
	}
}

func TestTelemetryRejectsWhenNotRunning(t *testing.T) {
	store := newTestStore()
	store.experiments[3] = &models.Experiment{ID: 3, Active: true}
	store.sessions[[2]int64{3, 2}] = &models.Session{ExperimentID: 3, UserID: 2, Secret: "s1"}
	h := newTelemetryHandler(store)

	body := `{"user":2,"experiment":3,"secret":"s1","time":"2026-08-28T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/debugger", bytes.NewReader([]byte(body)))
	rr := httptest.NewRecorder()

	h.Debugger(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a session that never started, got %d", rr.Code)
	}
}
