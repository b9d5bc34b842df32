package logging

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

// Audit event types.
const (
	AuditEventRegister      AuditEventType = "account.register"
	AuditEventLogin         AuditEventType = "auth.login"
	AuditEventTokenRejected AuditEventType = "auth.token_rejected"
	AuditEventRateLimitHit  AuditEventType = "security.rate_limit"
	AuditEventInactiveLogin AuditEventType = "auth.inactive_account"
)

// AuditOutcome represents the outcome of an action.
type AuditOutcome string

// Audit outcomes.
const (
	AuditOutcomeSuccess AuditOutcome = "success"
	AuditOutcomeFailure AuditOutcome = "failure"
	AuditOutcomeDenied  AuditOutcome = "denied"
)

// AuditEvent represents an audit log entry.
type AuditEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      AuditEventType    `json:"type"`
	Actor     string            `json:"actor,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Outcome   AuditOutcome      `json:"outcome"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
}

// AuditLogger writes account and security events to the log and, when
// configured, to Application Insights as custom events.
type AuditLogger struct {
	logger      *slog.Logger
	insights    *AppInsightsClient
	service     string
	environment string
}

// AuditLoggerConfig holds configuration for the audit logger.
type AuditLoggerConfig struct {
	ServiceName string
	Environment string
	Logger      *slog.Logger
	Insights    *AppInsightsClient
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(config AuditLoggerConfig) *AuditLogger {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuditLogger{
		logger:      logger.With("audit", true),
		insights:    config.Insights,
		service:     config.ServiceName,
		environment: config.Environment,
	}
}

// Log records an audit event, filling in ID, timestamp and trace ID.
func (l *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Timestamp = time.Now().UTC()
	if event.TraceID == "" {
		event.TraceID = TraceIDFromContext(ctx)
	}

	attrs := []slog.Attr{
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
		slog.String("outcome", string(event.Outcome)),
		slog.String("service", l.service),
		slog.String("environment", l.environment),
	}
	if event.Actor != "" {
		attrs = append(attrs, slog.String("actor", event.Actor))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", event.TraceID))
	}
	if len(event.Details) > 0 {
		detailArgs := make([]any, 0, len(event.Details)*2)
		for k, v := range event.Details {
			detailArgs = append(detailArgs, k, v)
		}
		attrs = append(attrs, slog.Group("details", detailArgs...))
	}

	level := slog.LevelInfo
	if event.Outcome != AuditOutcomeSuccess {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, "audit_event", attrs...)

	props := map[string]string{
		"outcome":     string(event.Outcome),
		"actor":       event.Actor,
		"service":     l.service,
		"environment": l.environment,
	}
	for k, v := range event.Details {
		props[k] = v
	}
	l.insights.TrackEvent(string(event.Type), props)
}

// LogFromRequest records an event for an HTTP request, taking client IP and
// request ID from r.
func (l *AuditLogger) LogFromRequest(r *http.Request, eventType AuditEventType, actor string, outcome AuditOutcome, details map[string]string) {
	l.Log(r.Context(), AuditEvent{
		Type:      eventType,
		Actor:     actor,
		IP:        ClientIP(r),
		Outcome:   outcome,
		Details:   details,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// address without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// TraceIDFromContext returns the OpenTelemetry trace ID of the active span.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
