// Package server exposes the actions over HTTP so they can be triggered by
// webhooks instead of one-shot invocations.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultRequestTimeout covers a full advisory retry loop.
const DefaultRequestTimeout = 15 * time.Minute

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

// WithAuthToken requires "Authorization: Bearer <token>" on action routes.
func WithAuthToken(token string) Option {
	return func(s *Server) {
		s.authToken = token
	}
}

// WithServiceName names the server in traces.
func WithServiceName(name string) Option {
	return func(s *Server) {
		s.serviceName = name
	}
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger

	requestTimeout time.Duration
	authToken      string
	serviceName    string
	httpServer     *http.Server
}

// New builds the router and mounts the action routes backed by runner.
func New(port int, logger *slog.Logger, runner Runner, opts ...Option) *Server {
	s := &Server{
		Port:           port,
		logger:         logger,
		requestTimeout: DefaultRequestTimeout,
		serviceName:    "roboto-ai-actions",
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, s.serviceName)
	})

	h := &handlers{runner: runner, logger: logger}
	r.Get("/healthz", h.health)
	r.Group(func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}
		r.Use(TimeoutMiddleware(s.requestTimeout))
		r.Post("/v1/datasets/{datasetID}/ai-events", h.createAIEvents)
		r.Post("/v1/datasets/{datasetID}/ai-summary", h.createAISummary)
	})

	s.Router = r
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight actions.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
