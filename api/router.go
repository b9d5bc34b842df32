// Package api wires the HTTP surface of the sinkhole advisory service.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"

	"github.com/seoulsafe/sinkhole-api/account"
	"github.com/seoulsafe/sinkhole-api/auth"
	"github.com/seoulsafe/sinkhole-api/hazard"
	"github.com/seoulsafe/sinkhole-api/health"
	apphttp "github.com/seoulsafe/sinkhole-api/http"
	"github.com/seoulsafe/sinkhole-api/logging"
	"github.com/seoulsafe/sinkhole-api/places"
	"github.com/seoulsafe/sinkhole-api/telemetry"
)

// PlaceSearcher looks up places by keyword. Failures are reported in the
// result, never as an error.
type PlaceSearcher interface {
	Search(ctx context.Context, query string) places.Result
}

// Deps are the collaborators the handlers need. Tracer, HTTPMetrics,
// Metrics and RateLimit are optional.
type Deps struct {
	Logger    *logging.Logger
	Audit     *logging.AuditLogger
	Table     *hazard.Table
	Estimator *hazard.Estimator
	Advisor   *hazard.Advisor
	Accounts  *account.Service
	JWT       *auth.JWTManager
	Places    PlaceSearcher
	Health    *health.Checker

	Tracer      trace.Tracer
	HTTPMetrics *telemetry.HTTPMetrics
	Metrics     *telemetry.AdvisoryMetrics

	CORSOrigins []string
	RateLimit   *apphttp.RateLimiterConfig
}

// Handler serves every endpoint of the service.
type Handler struct {
	deps    Deps
	router  chi.Router
	limiter *apphttp.RateLimiter
}

// NewHandler builds the router. Call Close to stop the rate limiter.
func NewHandler(deps Deps) *Handler {
	h := &Handler{deps: deps}

	r := chi.NewRouter()
	r.Use(apphttp.RequestID)
	if deps.Tracer != nil {
		r.Use(telemetry.TracingMiddleware(deps.Tracer))
	}
	r.Use(telemetry.MetricsMiddleware(deps.HTTPMetrics))
	r.Use(apphttp.Logger(deps.Logger))
	r.Use(apphttp.Recoverer(deps.Logger))
	r.Use(apphttp.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", apphttp.RequestIDHeader},
		ExposedHeaders:   []string{apphttp.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", deps.Health.LivenessHandler())
	r.Get("/readyz", deps.Health.ReadinessHandler())

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			h.limiter = apphttp.NewRateLimiter(h.rateLimitConfig(*deps.RateLimit))
			r.Use(h.limiter.Middleware)
		}

		r.Post("/register", h.register)
		r.Post("/token", h.token)
		r.With(auth.Middleware(deps.JWT)).Get("/me", h.me)

		r.Post("/predict-risk", h.predictRisk)
		r.Get("/risk-zones", h.riskZones)
		r.Post("/safe-route", h.safeRoute)

		r.Get("/search-location", h.searchLocation)
		r.Get("/search-location-combined", h.searchLocation)
	})

	h.router = r
	return h
}

func (h *Handler) rateLimitConfig(config apphttp.RateLimiterConfig) apphttp.RateLimiterConfig {
	next := config.OnLimitExceeded
	config.OnLimitExceeded = func(r *http.Request, key string) {
		if h.deps.Audit != nil {
			h.deps.Audit.LogFromRequest(r, logging.AuditEventRateLimitHit, key, logging.AuditOutcomeDenied,
				map[string]string{"path": r.URL.Path})
		}
		if next != nil {
			next(r, key)
		}
	}
	return config
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Close releases background resources.
func (h *Handler) Close() {
	if h.limiter != nil {
		h.limiter.Close()
	}
}
