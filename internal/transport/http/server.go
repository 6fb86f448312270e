// Package http exposes the audit API: snapshot and QA issue access, run
// triggering, snapshot diffs, a websocket progress feed and prometheus
// metrics.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fidcetl/internal/config"
	apperrors "fidcetl/internal/errors"
	"fidcetl/internal/services"
	"fidcetl/internal/websocket"
)

// Server is the audit API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the server and its route tree. registry may be nil to
// disable the metrics endpoint.
func NewServer(cfg config.ServerConfig, service *services.RunService, hub *websocket.Hub,
	registry *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	handler := NewHandler(service, hub, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handler.Health)
		r.Get("/snapshot", handler.Snapshot)
		r.Get("/errors", handler.Errors)
		r.Get("/qa/issues", handler.Issues)
		r.Post("/run", handler.TriggerRun)
		r.Post("/diff", handler.Diff)
	})
	r.Get("/ws", handler.ServeWS)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		render.Render(w, req, apperrors.ErrNotFound)
	})
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("audit api listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request in slog form.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
				slog.Duration("elapsed", time.Since(start)))
		})
	}
}
