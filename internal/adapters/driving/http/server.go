package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// RequestMetrics records HTTP traffic and exposes the scrape endpoint
type RequestMetrics interface {
	RecordHTTPRequest(method, path string, status int, d time.Duration)
	Handler() http.Handler
}

// Services bundles the driving ports exposed over HTTP
type Services struct {
	Auth        driving.AuthService
	Schedules   driving.ScheduleService
	Inventory   driving.InventoryService
	Progress    driving.ProgressService
	Webhooks    driving.WebhookService
	Connections driving.ConnectionService
	RateLimiter driving.RateLimiter

	// Broadcasts feeds the progress stream. Nil disables the stream.
	Broadcasts driven.BroadcastSubscriber
	// Metrics is optional
	Metrics RequestMetrics
	// Checks are pinged by /ready, keyed by name
	Checks map[string]Pinger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	cfg        Config
	svc        Services
	logger     *slog.Logger
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// RateLimitRequests per RateLimitWindow seconds per caller. Zero disables.
	RateLimitRequests int
	RateLimitWindow   int

	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		Version:           "dev",
		RateLimitRequests: 100,
		RateLimitWindow:   60,
		AllowedOrigins:    []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svc Services) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		router:  http.NewServeMux(),
		version: cfg.Version,
		cfg:     cfg,
		svc:     svc,
		logger:  cfg.Logger,
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: it would cut long-lived progress streams
		IdleTimeout: 60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in the global middleware chain
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewCORSMiddleware(s.cfg.AllowedOrigins).Handler(h)
	h = NewLoggingMiddleware(s.logger, s.svc.Metrics).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.svc.Auth)
	limiter := NewRateLimitMiddleware(s.svc.RateLimiter, s.cfg.RateLimitRequests, s.cfg.RateLimitWindow, s.logger)

	// authenticated and rate limited
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(limiter.Handler(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(authMiddleware.RequireAdmin(limiter.Handler(h)))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)
	if s.svc.Metrics != nil {
		s.router.Handle("GET /metrics", s.svc.Metrics.Handler())
	}

	// Providers and tenant connections
	s.router.Handle("GET /api/v1/providers", protect(s.handleListProviders))
	s.router.Handle("GET /api/v1/connections", protect(s.handleListConnections))
	s.router.Handle("POST /api/v1/connections", protect(s.handleCreateConnection))
	s.router.Handle("DELETE /api/v1/connections/{id}", protect(s.handleDeleteConnection))

	// Schedules (admin-only for mutations)
	s.router.Handle("GET /api/v1/schedules", protect(s.handleListSchedules))
	s.router.Handle("POST /api/v1/schedules", admin(s.handleCreateSchedule))
	s.router.Handle("GET /api/v1/schedules/{id}", protect(s.handleGetSchedule))
	s.router.Handle("PUT /api/v1/schedules/{id}/status", admin(s.handleUpdateScheduleStatus))
	s.router.Handle("DELETE /api/v1/schedules/{id}", admin(s.handleDeleteSchedule))
	s.router.Handle("POST /api/v1/schedules/{id}/run", admin(s.handleRunSchedule))
	s.router.Handle("GET /api/v1/schedules/{id}/executions", protect(s.handleListExecutions))

	// Executions
	s.router.Handle("GET /api/v1/executions/{id}", protect(s.handleGetExecution))
	s.router.Handle("POST /api/v1/executions/{id}/retry", admin(s.handleRetryExecution))

	// Inventory and products
	s.router.Handle("GET /api/v1/inventory/{provider}", protect(s.handleGetInventory))
	s.router.Handle("GET /api/v1/inventory/{provider}/items", protect(s.handleListInventoryItems))
	s.router.Handle("POST /api/v1/inventory/{provider}/sync", protect(s.handleSyncInventory))
	s.router.Handle("POST /api/v1/inventory/adjust", protect(s.handleAdjustInventory))
	s.router.Handle("POST /api/v1/products/{provider}", protect(s.handleCreateProduct))

	// Sync progress
	s.router.Handle("GET /api/v1/syncs", protect(s.handleListActiveSyncs))
	s.router.Handle("POST /api/v1/syncs", protect(s.handleInitializeSync))
	s.router.Handle("GET /api/v1/syncs/{id}", protect(s.handleGetSync))
	s.router.Handle("PATCH /api/v1/syncs/{id}", protect(s.handleUpdateSync))
	s.router.Handle("POST /api/v1/syncs/{id}/cancel", protect(s.handleCancelSync))
	s.router.Handle("GET /api/v1/syncs/{id}/stream", authMiddleware.Authenticate(http.HandlerFunc(s.handleSyncStream)))

	// Webhook subscriptions
	s.router.Handle("GET /api/v1/webhooks", protect(s.handleListWebhooks))
	s.router.Handle("POST /api/v1/webhooks", protect(s.handleCreateWebhook))
	s.router.Handle("DELETE /api/v1/webhooks/{id}", protect(s.handleDeleteWebhook))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
