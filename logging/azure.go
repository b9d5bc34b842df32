package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"github.com/microsoft/ApplicationInsights-Go/appinsights/contracts"
)

// AppInsightsClient wraps Application Insights telemetry client. A nil
// client is valid and drops everything.
type AppInsightsClient struct {
	client appinsights.TelemetryClient
}

// NewAppInsightsClient creates a client, or returns nil without a key.
func NewAppInsightsClient(instrumentationKey string) *AppInsightsClient {
	if instrumentationKey == "" {
		return nil
	}

	config := appinsights.NewTelemetryConfiguration(instrumentationKey)
	config.MaxBatchSize = 1024
	config.MaxBatchInterval = 2 * time.Second

	return &AppInsightsClient{client: appinsights.NewTelemetryClientFromConfig(config)}
}

// NewAppInsightsClientFromConfig creates a client from a full configuration,
// e.g. one pointing at a private ingestion endpoint.
func NewAppInsightsClientFromConfig(config *appinsights.TelemetryConfiguration) *AppInsightsClient {
	return &AppInsightsClient{client: appinsights.NewTelemetryClientFromConfig(config)}
}

// TrackEvent tracks a custom event.
func (c *AppInsightsClient) TrackEvent(name string, properties map[string]string) {
	if c == nil || c.client == nil {
		return
	}
	event := appinsights.NewEventTelemetry(name)
	for k, v := range properties {
		event.Properties[k] = v
	}
	c.client.Track(event)
}

// TrackTrace tracks a log line.
func (c *AppInsightsClient) TrackTrace(message string, severity contracts.SeverityLevel, properties map[string]string) {
	if c == nil || c.client == nil {
		return
	}
	trace := appinsights.NewTraceTelemetry(message, severity)
	for k, v := range properties {
		trace.Properties[k] = v
	}
	c.client.Track(trace)
}

// TrackRequest tracks an HTTP request.
func (c *AppInsightsClient) TrackRequest(method, url string, duration time.Duration, responseCode string, success bool) {
	if c == nil || c.client == nil {
		return
	}
	request := appinsights.NewRequestTelemetry(method, url, duration, responseCode)
	request.Success = success
	c.client.Track(request)
}

// TrackDependency tracks an outbound call such as the place-search API.
func (c *AppInsightsClient) TrackDependency(name, dependencyType, target string, duration time.Duration, success bool) {
	if c == nil || c.client == nil {
		return
	}
	dependency := appinsights.NewRemoteDependencyTelemetry(name, dependencyType, target, success)
	dependency.Duration = duration
	c.client.Track(dependency)
}

// Close flushes remaining telemetry and waits up to timeout for it to send.
func (c *AppInsightsClient) Close(timeout time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	select {
	case <-c.client.Channel().Close(timeout):
	case <-time.After(timeout + time.Second):
	}
}

// insightsHandler forwards warn and error records to Application Insights
// as traces and passes every record on to next.
type insightsHandler struct {
	next     slog.Handler
	insights *AppInsightsClient
	attrs    []slog.Attr
}

func newInsightsHandler(next slog.Handler, insights *AppInsightsClient) *insightsHandler {
	return &insightsHandler{next: next, insights: insights}
}

func (h *insightsHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *insightsHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		props := make(map[string]string, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			props[a.Key] = a.Value.String()
		}
		r.Attrs(func(a slog.Attr) bool {
			props[a.Key] = a.Value.String()
			return true
		})
		h.insights.TrackTrace(r.Message, severity(r.Level), props)
	}
	return h.next.Handle(ctx, r)
}

func (h *insightsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &insightsHandler{next: h.next.WithAttrs(attrs), insights: h.insights, attrs: merged}
}

func (h *insightsHandler) WithGroup(name string) slog.Handler {
	return &insightsHandler{next: h.next.WithGroup(name), insights: h.insights, attrs: h.attrs}
}

func severity(level slog.Level) contracts.SeverityLevel {
	switch {
	case level >= slog.LevelError:
		return contracts.Error
	case level >= slog.LevelWarn:
		return contracts.Warning
	case level >= slog.LevelInfo:
		return contracts.Information
	default:
		return contracts.Verbose
	}
}
