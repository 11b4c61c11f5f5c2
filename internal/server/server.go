// Package server exposes the read API, the subscription endpoint and the
// alert WebSocket stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/FilipeRosar/oddsscanner/internal/server/handler"
	"github.com/FilipeRosar/oddsscanner/internal/server/middleware"
	"github.com/FilipeRosar/oddsscanner/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// AdminAPIKey guards operator routes. Empty keeps them closed.
	AdminAPIKey string
	// SubscribeLimit is the number of subscribe calls allowed per client IP
	// per SubscribeWindow. Zero disables the limit.
	SubscribeLimit  int
	SubscribeWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers. Status and
// Sync may be nil.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Matches   *handler.MatchHandler
	Subscribe *handler.SubscribeHandler
	Sync      *handler.SyncHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
// limiter and hub may be nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, hub *ws.Hub, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      Routes(cfg, handlers, limiter, hub, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the complete handler tree.
func Routes(cfg Config, handlers Handlers, limiter domain.RateLimiter, hub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/matches", handlers.Matches.ListMatches)
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}

	var subscribe http.Handler = http.HandlerFunc(handlers.Subscribe.Subscribe)
	if limiter != nil && cfg.SubscribeLimit > 0 {
		subscribe = middleware.RateLimit(limiter, "subscribe", cfg.SubscribeLimit, cfg.SubscribeWindow, logger)(subscribe)
	}
	mux.Handle("POST /api/subscribe", subscribe)

	if handlers.Sync != nil {
		mux.Handle("POST /api/sync/trigger", middleware.RequireAPIKey(cfg.AdminAPIKey)(http.HandlerFunc(handlers.Sync.Trigger)))
	}

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
