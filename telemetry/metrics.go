package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Reader receives collected metrics. Nil keeps instruments live but
	// unexported.
	Reader sdkmetric.Reader
}

// MetricsProvider provides metrics functionality.
type MetricsProvider struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
}

// NewMetricsProvider creates a meter provider and installs it globally.
func NewMetricsProvider(ctx context.Context, config MetricsConfig) (*MetricsProvider, error) {
	res, err := newResource(ctx, config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if config.Reader != nil {
		opts = append(opts, sdkmetric.WithReader(config.Reader))
	}
	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	return &MetricsProvider{
		provider: provider,
		meter:    provider.Meter(config.ServiceName),
	}, nil
}

// Meter returns the meter for creating instruments.
func (m *MetricsProvider) Meter() metric.Meter {
	return m.meter
}

// Shutdown shuts down the metrics provider.
func (m *MetricsProvider) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// HTTPMetrics provides HTTP server metrics.
type HTTPMetrics struct {
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	responseSize    metric.Int64Histogram
	activeRequests  metric.Int64UpDownCounter
}

// NewHTTPMetrics creates HTTP metrics.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	requestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	responseSize, err := meter.Int64Histogram(
		"http_response_size_bytes",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		responseSize:    responseSize,
		activeRequests:  activeRequests,
	}, nil
}

// RecordRequest records one completed request. route is the chi route
// pattern, not the raw path.
func (m *HTTPMetrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration, respSize int64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status_code", status),
		attribute.String("status_class", statusClass(status)),
	)

	m.requestsTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.responseSize.Record(ctx, respSize, attrs)
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// MetricsMiddleware records HTTP metrics for every request.
func MetricsMiddleware(metrics *HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			metrics.activeRequests.Add(ctx, 1)
			defer metrics.activeRequests.Add(ctx, -1)

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordRequest(ctx, r.Method, route, status, time.Since(start), int64(ww.BytesWritten()))
		})
	}
}

// AdvisoryMetrics counts risk assessments, planned routes and place searches.
// A nil *AdvisoryMetrics is valid and records nothing.
type AdvisoryMetrics struct {
	assessments   metric.Int64Counter
	riskScore     metric.Float64Histogram
	routes        metric.Int64Counter
	avoidedZones  metric.Int64Histogram
	placeSearches metric.Int64Counter
	placeLatency  metric.Float64Histogram
}

// NewAdvisoryMetrics creates the advisory instruments.
func NewAdvisoryMetrics(meter metric.Meter) (*AdvisoryMetrics, error) {
	assessments, err := meter.Int64Counter(
		"risk_assessments_total",
		metric.WithDescription("Risk assessments by level"),
	)
	if err != nil {
		return nil, err
	}

	riskScore, err := meter.Float64Histogram(
		"risk_score",
		metric.WithDescription("Assessed sinkhole risk score"),
		metric.WithExplicitBucketBoundaries(0.2, 0.4, 0.6, 0.8, 1.0),
	)
	if err != nil {
		return nil, err
	}

	routes, err := meter.Int64Counter(
		"routes_planned_total",
		metric.WithDescription("Planned routes by type"),
	)
	if err != nil {
		return nil, err
	}

	avoidedZones, err := meter.Int64Histogram(
		"route_avoided_zones",
		metric.WithDescription("Hazard zones avoided per planned route"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	placeSearches, err := meter.Int64Counter(
		"place_searches_total",
		metric.WithDescription("Place searches by outcome"),
	)
	if err != nil {
		return nil, err
	}

	placeLatency, err := meter.Float64Histogram(
		"place_search_duration_seconds",
		metric.WithDescription("Place search duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, err
	}

	return &AdvisoryMetrics{
		assessments:   assessments,
		riskScore:     riskScore,
		routes:        routes,
		avoidedZones:  avoidedZones,
		placeSearches: placeSearches,
		placeLatency:  placeLatency,
	}, nil
}

// RecordAssessment records one risk assessment.
func (m *AdvisoryMetrics) RecordAssessment(ctx context.Context, level string, score float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("risk_level", level))
	m.assessments.Add(ctx, 1, attrs)
	m.riskScore.Record(ctx, score, attrs)
}

// RecordRoute records one planned route.
func (m *AdvisoryMetrics) RecordRoute(ctx context.Context, routeType string, avoided int) {
	if m == nil {
		return
	}
	m.routes.Add(ctx, 1, metric.WithAttributes(attribute.String("route_type", routeType)))
	m.avoidedZones.Record(ctx, int64(avoided))
}

// RecordPlaceSearch records one place search and how it resolved
// (cache_hit, upstream, rejected, rate_limited, circuit_open, ...).
func (m *AdvisoryMetrics) RecordPlaceSearch(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.placeSearches.Add(ctx, 1, attrs)
	m.placeLatency.Record(ctx, duration.Seconds(), attrs)
}
