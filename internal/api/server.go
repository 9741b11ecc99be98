// Package api provides the HTTP REST API for grading template management.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	apimw "github.com/hugo-lorenzo-mato/scorecard/internal/api/middleware"
	"github.com/hugo-lorenzo-mato/scorecard/internal/logging"
	"github.com/hugo-lorenzo-mato/scorecard/internal/metrics"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

// Server provides HTTP REST API endpoints for template management.
type Server struct {
	router         chi.Router
	templates      *templates.Service
	metrics        *metrics.Metrics
	logger         *logging.Logger
	healthCheck    func(context.Context) error
	allowedOrigins []string
	requestTimeout time.Duration
	shutdownGrace  time.Duration
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records request metrics and exposes them on /metrics.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealthCheck sets the probe run by /health, typically a database ping.
func WithHealthCheck(fn func(context.Context) error) ServerOption {
	return func(s *Server) {
		s.healthCheck = fn
	}
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

// WithShutdownGrace bounds how long ListenAndServe waits for in-flight
// requests after its context ends.
func WithShutdownGrace(d time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownGrace = d
	}
}

// NewServer creates a new API server.
func NewServer(svc *templates.Service, opts ...ServerOption) *Server {
	s := &Server{
		templates:      svc,
		logger:         logging.NewNop(),
		allowedOrigins: []string{"*"},
		requestTimeout: 60 * time.Second,
		shutdownGrace:  5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures Chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(apimw.RequestMetadata)
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", "X-Requested-With",
			apimw.HeaderUserID, apimw.HeaderOrgID, apimw.HeaderRole,
		},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apimw.Identity(s.logger))

		r.Get("/criteria-types", s.handleListCriteriaTypes)
		r.Get("/audit", s.handleListAudit)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)

			r.Route("/{templateID}", func(r chi.Router) {
				r.Get("/", s.handleGetTemplate)
				r.Put("/", s.handleUpdateTemplate)
				r.Delete("/", s.handleDeleteTemplate)
				r.Post("/duplicate", s.handleDuplicateTemplate)
				r.Post("/default", s.handleSetDefault)
				r.Get("/validation", s.handleValidateTemplate)
				r.Post("/publish", s.handlePublish)

				r.Route("/groups", func(r chi.Router) {
					r.Get("/", s.handleListGroups)
					r.Post("/", s.handleCreateGroup)
					r.Put("/", s.handleReorderGroups)
					r.Put("/{groupID}", s.handleUpdateGroup)
					r.Delete("/{groupID}", s.handleDeleteGroup)
				})

				r.Route("/criteria", func(r chi.Router) {
					r.Get("/", s.handleListCriteria)
					r.Post("/", s.handleCreateCriterion)
					r.Put("/", s.handleReorderCriteria)
					r.Put("/{criterionID}", s.handleUpdateCriterion)
					r.Delete("/{criterionID}", s.handleDeleteCriterion)
				})

				r.Route("/versions", func(r chi.Router) {
					r.Get("/", s.handleListVersions)
					r.Get("/{number}", s.handleGetVersion)
					r.Post("/{number}/evaluate", s.handleEvaluate)
				})
			})
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests and records their metrics under
// the matched route pattern.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			elapsed := time.Since(start)
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			s.metrics.ObserveHTTP(route, r.Method, ww.Status(), elapsed)
			s.logger.WithContext(r.Context()).Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", ww.Status(),
				"duration", elapsed,
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Error("failed to encode response", "error", err)
		}
	}
}

// respondData wraps a payload in the success envelope.
func (s *Server) respondData(w http.ResponseWriter, status int, data interface{}) {
	s.respondJSON(w, status, map[string]interface{}{"data": data})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if s.healthCheck != nil {
		if err := s.healthCheck(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	s.respondJSON(w, code, map[string]string{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
