package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"blocklab-backend/internal/handlers"
	"blocklab-backend/internal/middleware"
	"blocklab-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	telemetryHandler *handlers.TelemetryHandler,
	resultsHandler *handlers.ResultsHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	experimentHandler *handlers.ExperimentHandler,
	monitorHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Session transitions are rare per participant; a tight per-IP limit
	// blunts secret guessing without touching telemetry throughput.
	sessionLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Researcher Auth (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(sessionLimiter.Middleware)
			r.Post("/login", authHandler.Login)
		})

		// ──── Participant Session Transitions (secret-gated) ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(sessionLimiter.Middleware)
			r.Post("/start", sessionHandler.Start)
			r.Post("/stop", sessionHandler.Stop)
			r.Post("/restart", sessionHandler.Restart)
		})

		// ──── Telemetry Ingestion (secret-gated, one endpoint per kind) ────
		r.Route("/telemetry", func(r chi.Router) {
			r.Post("/block", telemetryHandler.Block)
			r.Post("/click", telemetryHandler.Click)
			r.Post("/debugger", telemetryHandler.Debugger)
			r.Post("/question", telemetryHandler.Question)
			r.Post("/resource", telemetryHandler.Resource)
			r.Post("/file", telemetryHandler.File)
			r.Post("/zip", telemetryHandler.Zip)
		})

		// ──── Results ────
		r.Get("/results/download", resultsHandler.Download)

		// ──── Analytics (researcher) ────
		r.Route("/analytics", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/events", analyticsHandler.EventCounts)
			r.Get("/code-count", analyticsHandler.CodeCount)
		})

		// ──── Experiment Admin (researcher) ────
		r.Route("/experiments", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", experimentHandler.Create)
			r.Get("/", experimentHandler.List)
			r.Get("/{id}", experimentHandler.Get)
			r.Put("/{id}/active", experimentHandler.SetActive)
			r.Post("/{id}/participants", experimentHandler.RegisterParticipant)
		})

		// ──── Live Monitor WebSocket ────
		r.Get("/ws", monitorHub.HandleWebSocket)
	})

	return r
}
