package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/eslint-node/internal/events"
	"github.com/mattjoyce/eslint-node/internal/jobmanager"
	"github.com/mattjoyce/eslint-node/internal/journal"
	"github.com/mattjoyce/eslint-node/internal/linter"
)

// Linter is the command surface the daemon exposes.
type Linter interface {
	Lint(ctx context.Context, req linter.Request) (*linter.LintReport, error)
	Fix(ctx context.Context, req linter.Request) (*linter.FixReport, error)
	Debug(ctx context.Context, req linter.Request) (*linter.DebugReport, error)
	ClearCache(ctx context.Context) error
	Inactive() bool
}

// WorkerStatus reports on the worker process for /healthz.
type WorkerStatus interface {
	State() jobmanager.State
	Pid() int
	PendingCount() int
}

// History lists journaled jobs. A nil History disables /v1/history.
type History interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// Token is the bearer token required on /v1 routes. Empty disables auth.
	Token string
	// InstanceID identifies this daemon in /healthz.
	InstanceID string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	linter    Linter
	worker    WorkerStatus
	history   History
	events    *events.Hub
	metrics   http.Handler
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// Deps bundles what the server serves.
type Deps struct {
	Linter  Linter
	Worker  WorkerStatus
	History History
	Events  *events.Hub
	Metrics http.Handler
}

// New creates a new API server instance
func New(config Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	hub := deps.Events
	if hub == nil {
		hub = events.NewHub(256)
	}
	return &Server{
		config:    config,
		linter:    deps.Linter,
		worker:    deps.Worker,
		history:   deps.History,
		events:    hub,
		metrics:   deps.Metrics,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams stay open, so no WriteTimeout.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/lint", s.handleLint)
		r.Post("/fix", s.handleFix)
		r.Post("/debug", s.handleDebug)
		r.Post("/cache/clear", s.handleClearCache)
		r.Get("/history", s.handleHistory)
		r.Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
