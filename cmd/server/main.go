package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blocklab-backend/internal/config"
	"blocklab-backend/internal/database"
	"blocklab-backend/internal/handlers"
	"blocklab-backend/internal/middleware"
	"blocklab-backend/internal/repository"
	"blocklab-backend/internal/router"
	"blocklab-backend/internal/services"
	"blocklab-backend/internal/websocket"
	"blocklab-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting BlockLab Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	experimentRepo := repository.NewExperimentRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	eventRepo := repository.NewEventRepo(pool)
	participantRepo := repository.NewParticipantRepo(pool)
	researcherRepo := repository.NewResearcherRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	notifier := services.NewRedisNotifier(redisClients.Queue)
	monitorPublisher := services.NewRedisMonitorPublisher(redisClients.PubSub)
	userLocks := services.NewUserLocks()

	sessionService := services.NewSessionService(
		sessionRepo, experimentRepo, participantRepo, notifier, userLocks, cfg.RestartResetsStart,
	)
	telemetryService := services.NewTelemetryService(
		sessionRepo, experimentRepo, eventRepo, userLocks, monitorPublisher,
	)
	archiveService := services.NewArchiveService(eventRepo, experimentRepo, services.NewZipProjectMerger())
	analyticsService := services.NewAnalyticsService(eventRepo, redisClients.Queue)
	authService := services.NewAuthService(researcherRepo, jwtAuth)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	telemetryHandler := handlers.NewTelemetryHandler(telemetryService)
	resultsHandler := handlers.NewResultsHandler(archiveService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	experimentHandler := handlers.NewExperimentHandler(experimentRepo, sessionRepo, participantRepo)

	// ──── Step 5: Start Notification Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, emailService, experimentRepo, cfg.NotificationWorkers)
	workerPool.Start()
	log.Printf("✓ Notification worker pool started (%d goroutines)", cfg.NotificationWorkers)

	// ──── Step 6: Start Live Monitor Hub ────
	monitorHub := websocket.NewHub(redisClients.PubSub, jwtAuth)
	log.Println("✓ Monitor hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		sessionHandler,
		telemetryHandler,
		resultsHandler,
		analyticsHandler,
		experimentHandler,
		monitorHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // archive streaming for long sessions
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ BlockLab Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
