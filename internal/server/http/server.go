// Package httpserver provides the status server of a citation graph run.
//
// The server is read-only. It exposes liveness and readiness probes, the run
// progress as JSON and as a server-sent event stream, individual records of
// the in-memory dataset, and the Prometheus metrics of the process.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/dataset"
	"github.com/helixir/citation-graph-service/internal/domain"
)

// PaperReader is the read side of the dataset store.
type PaperReader interface {
	Get(id string) (*domain.PaperRecord, bool)
	Stats() dataset.Stats
}

// HealthChecker reports the health of the optional database mirror.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP status server.
type Server struct {
	router      chi.Router
	httpServer  *http.Server
	tracker     *Tracker
	papers      PaperReader
	db          HealthChecker
	gatherer    prometheus.Gatherer
	metricsPath string
	logger      zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	MetricsPath     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Deps groups the collaborators of the server. DB may be nil when the
// database mirror is disabled; Gatherer defaults to the global registry.
type Deps struct {
	Tracker  *Tracker
	Papers   PaperReader
	DB       HealthChecker
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}

	s := &Server{
		tracker:     tracker,
		papers:      deps.Papers,
		db:          deps.DB,
		gatherer:    gatherer,
		metricsPath: cfg.MetricsPath,
		logger:      deps.Logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogMiddleware(s.logger))

	r.Method(http.MethodGet, s.metricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// The event stream sets its own content type.
	r.Get("/status/stream", s.streamProgress)

	r.Group(func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Get("/healthz", s.healthHandler)
		r.Get("/readyz", s.readinessHandler)
		r.Get("/status", s.statusHandler)
		r.Get("/papers/*", s.getPaper)
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Tracker returns the progress tracker fed by the orchestrator.
func (s *Server) Tracker() *Tracker {
	return s.tracker
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.tracker.Close()
	return s.httpServer.Shutdown(ctx)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
