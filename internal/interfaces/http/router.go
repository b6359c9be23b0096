package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/BioDockViz/internal/interfaces/http/handlers"
	"github.com/turtacn/BioDockViz/internal/interfaces/http/middleware"
	"github.com/turtacn/BioDockViz/internal/interfaces/http/response"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// RouterConfig wires handlers and optional middleware into the router. Nil
// middleware is skipped.
type RouterConfig struct {
	StructureHandler *handlers.StructureHandler
	HealthHandler    *handlers.HealthHandler

	AuthMiddleware *middleware.AuthMiddleware
	CORS           *middleware.CORSConfig
	RateLimiter    middleware.RateLimiter

	Logger  logging.Logger
	Metrics *prometheus.AppMetrics

	// MetricsHandler serves MetricsPath (default /metrics) when set.
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter builds the chi router: global middleware, public probes and
// metrics, then the authenticated /api/v1 group.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogging(logger, middleware.DefaultLoggingConfig()))
	r.Use(chimw.Recoverer)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, middleware.DefaultRateLimitConfig()))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, errors.New(errors.ErrCodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusMethodNotAllowed, response.ErrorResponse{
			Type:          response.TypeValidation,
			Code:          string(errors.ErrCodeBadRequest),
			Message:       "method not allowed",
			CorrelationID: logging.CorrelationIDFromContext(r.Context()),
		})
	})

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
		r.Get("/healthz/detail", cfg.HealthHandler.Detailed)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.Authenticate)
		}
		if cfg.StructureHandler != nil {
			cfg.StructureHandler.RegisterRoutes(api)
		}
	})

	return r
}
