package logging

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

func newTestAudit(buf *bytes.Buffer) *AuditLogger {
	logger := New(Options{Level: "debug", Output: buf})
	return NewAuditLogger(AuditLoggerConfig{
		ServiceName: "sinkhole-api",
		Environment: "test",
		Logger:      logger.Logger,
	})
}

func TestAuditLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	audit := newTestAudit(&buf)

	audit.Log(context.Background(), AuditEvent{
		Type:    AuditEventLogin,
		Actor:   "kim@example.com",
		Outcome: AuditOutcomeSuccess,
		Details: map[string]string{"method": "password"},
	})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["msg"] != "audit_event" || entry["audit"] != true {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["event_type"] != "auth.login" || entry["outcome"] != "success" {
		t.Errorf("event_type/outcome = %v/%v", entry["event_type"], entry["outcome"])
	}
	if entry["actor"] != "kim@example.com" || entry["service"] != "sinkhole-api" {
		t.Errorf("actor/service = %v/%v", entry["actor"], entry["service"])
	}
	if id, _ := entry["event_id"].(string); len(id) != 36 {
		t.Errorf("event_id %q should be a UUID", id)
	}
	details, _ := entry["details"].(map[string]any)
	if details["method"] != "password" {
		t.Errorf("details = %v", entry["details"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("successful events log at INFO, got %v", entry["level"])
	}
}

func TestAuditLogger_FailuresLogAtWarn(t *testing.T) {
	var buf bytes.Buffer
	audit := newTestAudit(&buf)

	audit.Log(context.Background(), AuditEvent{Type: AuditEventLogin, Outcome: AuditOutcomeFailure})
	audit.Log(context.Background(), AuditEvent{Type: AuditEventRateLimitHit, Outcome: AuditOutcomeDenied})

	for _, entry := range decodeLines(t, &buf) {
		if entry["level"] != "WARN" {
			t.Errorf("%v logged at %v, want WARN", entry["event_type"], entry["level"])
		}
	}
}

func TestAuditLogger_LogFromRequest(t *testing.T) {
	var buf bytes.Buffer
	audit := newTestAudit(&buf)

	req := httptest.NewRequest("POST", "/token", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-42"))

	audit.LogFromRequest(req, AuditEventRegister, "lee@example.com", AuditOutcomeFailure,
		map[string]string{"reason": "duplicate_email"})

	entry := decodeLines(t, &buf)[0]
	if entry["ip"] != "10.0.0.7" {
		t.Errorf("ip = %v, want 10.0.0.7", entry["ip"])
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", entry["request_id"])
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:80", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.9:4711", "192.0.2.9"},
		{"remote addr without port", nil, "192.0.2.9", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTraceIDFromContext(t *testing.T) {
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty trace ID, got %q", got)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	if got := TraceIDFromContext(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("TraceIDFromContext() = %q", got)
	}
}
