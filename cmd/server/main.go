// StressSense - check-in service
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/stresssense/internal/agent"
	"github.com/ashureev/stresssense/internal/api"
	"github.com/ashureev/stresssense/internal/checkin"
	"github.com/ashureev/stresssense/internal/config"
	"github.com/ashureev/stresssense/internal/live"
	"github.com/ashureev/stresssense/internal/middleware"
	"github.com/ashureev/stresssense/internal/session"
	"github.com/ashureev/stresssense/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "store_backend", cfg.StoreBackend, "agent_url", cfg.AgentURL)

	// Initialize dependencies.
	repo, err := store.New(cfg.StoreBackend)
	if err != nil {
		slog.Error("Failed to initialize session backend", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Session backend health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session backend ready", "backend", cfg.StoreBackend)

	sessions := session.NewStore(repo, session.Options{})
	if err := sessions.Init(context.Background()); err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}

	client, err := agent.NewClient(agent.Config{
		URL:     cfg.AgentURL,
		Timeout: cfg.AgentTimeout,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize agent gateway", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	gateway := agent.NewService(client, conversationLogger)
	defer func() {
		if closeErr := gateway.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	controller := checkin.NewController(sessions, gateway, logger)

	hub := live.NewHub(sessions, controller, cfg.WSBufferSize)
	unsubscribe := sessions.Bus().Subscribe(hub)
	defer unsubscribe()
	defer hub.Close()

	// Initialize handlers.
	baseHandler := api.NewHandler(sessions, controller)
	checkinHandler := api.NewCheckinHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo, cfg.StoreBackend, hub.Count)
	wsHandler := live.NewHandler(hub, cfg.CORSOrigins)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	healthHandler.RegisterHealth(r)
	checkinHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws", wsHandler.ServeHTTP)

	// POST /api/messages blocks for up to the agent timeout and /ws is long-lived,
	// so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AgentTimeout+5*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
