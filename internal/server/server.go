// Package server runs the read-only HTTP monitoring API next to a paper
// session or on its own in serve mode.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/server/handler"
	"github.com/alanyoungcy/ashare-quant/internal/server/middleware"
)

// Config holds the HTTP server settings.
type Config struct {
	Port int
	// APIKey enables bearer/X-API-Key auth when non-empty.
	APIKey string
	// RateLimit caps requests per client per minute when a limiter is set.
	RateLimit int
}

// Handlers groups the route handlers. Nil handlers leave their routes
// unregistered.
type Handlers struct {
	Health    *handler.HealthHandler
	Bars      *handler.BarHandler
	Audit     *handler.AuditHandler
	Artifacts *handler.ArtifactHandler
	Paper     *handler.PaperHandler
}

// Server wraps an http.Server with the API routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers the routes and the middleware chain. limiter may be
// nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, limiter, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}
	if handlers.Bars != nil {
		mux.HandleFunc("GET /api/bars", handlers.Bars.ListSymbols)
		mux.HandleFunc("GET /api/bars/{vt_symbol}", handlers.Bars.GetBars)
	}
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	}
	if handlers.Artifacts != nil {
		mux.HandleFunc("GET /api/artifacts", handlers.Artifacts.List)
		mux.HandleFunc("GET /api/artifacts/{path...}", handlers.Artifacts.Get)
	}
	if handlers.Paper != nil {
		mux.HandleFunc("GET /api/paper/status", handlers.Paper.GetStatus)
		mux.HandleFunc("GET /api/paper/state", handlers.Paper.GetState)
		mux.HandleFunc("GET /api/paper/trades", handlers.Paper.ListTrades)
		mux.HandleFunc("GET /api/paper/orders/{id}", handlers.Paper.GetOrder)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute)(h)
	}
	h = middleware.Logging(logger)(h)
	return h
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
