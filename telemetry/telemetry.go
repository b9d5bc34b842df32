package telemetry

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config configures tracing and metrics together.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	OTLPInsecure   bool
	SampleRate     float64

	SpanExporter sdktrace.SpanExporter
	MetricReader sdkmetric.Reader
}

// Telemetry bundles the providers and the instruments the API records to.
type Telemetry struct {
	tracing  *TracingProvider
	metrics  *MetricsProvider
	http     *HTTPMetrics
	advisory *AdvisoryMetrics
}

// Setup creates both providers and the shared instruments.
func Setup(ctx context.Context, config Config) (*Telemetry, error) {
	if config.ServiceName == "" {
		config.ServiceName = "sinkhole-api"
	}

	tp, err := NewTracingProvider(ctx, TracingConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Environment:    config.Environment,
		Endpoint:       config.OTLPEndpoint,
		SampleRate:     config.SampleRate,
		Insecure:       config.OTLPInsecure,
		Exporter:       config.SpanExporter,
	})
	if err != nil {
		return nil, err
	}

	mp, err := NewMetricsProvider(ctx, MetricsConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Environment:    config.Environment,
		Reader:         config.MetricReader,
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	httpMetrics, err := NewHTTPMetrics(mp.Meter())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	advisory, err := NewAdvisoryMetrics(mp.Meter())
	if err != nil {
		return nil, fmt.Errorf("failed to create advisory metrics: %w", err)
	}

	return &Telemetry{
		tracing:  tp,
		metrics:  mp,
		http:     httpMetrics,
		advisory: advisory,
	}, nil
}

// Tracer returns the service tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracing.Tracer()
}

// HTTPMetrics returns the HTTP server instruments.
func (t *Telemetry) HTTPMetrics() *HTTPMetrics {
	return t.http
}

// AdvisoryMetrics returns the domain instruments.
func (t *Telemetry) AdvisoryMetrics() *AdvisoryMetrics {
	return t.advisory
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.tracing.Shutdown(ctx),
		t.metrics.Shutdown(ctx),
	)
}
