package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seoulsafe/sinkhole-api/resilience"
)

func ok(ctx context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(ctx context.Context) error { return errors.New(msg) }
}

func TestChecker_Check(t *testing.T) {
	tests := []struct {
		name   string
		checks []Check
		want   Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Check{{"sql", ok, true}, {"redis", ok, false}}, StatusHealthy},
		{"critical failure", []Check{{"sql", failing("db down"), true}, {"redis", ok, false}}, StatusUnhealthy},
		{"non-critical failure", []Check{{"sql", ok, true}, {"redis", failing("redis down"), false}}, StatusDegraded},
		{"critical wins over degraded", []Check{{"redis", failing("redis down"), false}, {"sql", failing("db down"), true}}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker("1.0.0")
			for _, c := range tt.checks {
				checker.AddCheck(c.Name, c.CheckFn, c.Critical)
			}

			response := checker.Check(context.Background())

			if response.Status != tt.want {
				t.Errorf("status = %s, want %s", response.Status, tt.want)
			}
			if len(response.Checks) != len(tt.checks) {
				t.Fatalf("results = %d, want %d", len(response.Checks), len(tt.checks))
			}
			for i, r := range response.Checks {
				if r.Name != tt.checks[i].Name {
					t.Errorf("result %d name = %s, want %s (order must follow registration)", i, r.Name, tt.checks[i].Name)
				}
				if (r.Status == StatusUnhealthy) != (r.Message != "") {
					t.Errorf("result %s: status %s with message %q", r.Name, r.Status, r.Message)
				}
			}
			if response.Version != "1.0.0" {
				t.Errorf("version = %s", response.Version)
			}
			if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
				t.Errorf("timestamp %q not RFC3339: %v", response.Timestamp, err)
			}
		})
	}
}

func TestChecker_ChecksRunConcurrently(t *testing.T) {
	checker := NewChecker("1.0.0")
	slow := func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	for i := 0; i < 5; i++ {
		checker.AddCheck("slow", slow, false)
	}

	start := time.Now()
	checker.Check(context.Background())
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("checks took %v, expected them to run in parallel", elapsed)
	}
}

func TestChecker_ConcurrentAddAndCheck(t *testing.T) {
	checker := NewChecker("1.0.0")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			checker.AddCheck("ping", ok, false)
		}()
		go func() {
			defer wg.Done()
			checker.Check(context.Background())
		}()
	}
	wg.Wait()

	if got := len(checker.Check(context.Background()).Checks); got != 20 {
		t.Errorf("checks = %d, want 20", got)
	}
}

func TestLivenessHandler(t *testing.T) {
	checker := NewChecker("1.2.3")
	checker.AddCheck("sql", failing("db down"), true)

	w := httptest.NewRecorder()
	checker.LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, liveness must not depend on checks", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["status"] != "alive" || body["version"] != "1.2.3" {
		t.Errorf("body = %v", body)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		check      CheckFunc
		critical   bool
		wantStatus int
		wantBody   Status
	}{
		{"healthy", ok, true, http.StatusOK, StatusHealthy},
		{"degraded still ready", failing("redis down"), false, http.StatusOK, StatusDegraded},
		{"critical failure", failing("db down"), true, http.StatusServiceUnavailable, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker("1.0.0")
			checker.AddCheck("dep", tt.check, tt.critical)

			w := httptest.NewRecorder()
			checker.ReadinessHandler()(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if body.Status != tt.wantBody {
				t.Errorf("body status = %s, want %s", body.Status, tt.wantBody)
			}
		})
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	if err := PingCheck(pingerFunc(ok), time.Second)(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := PingCheck(pingerFunc(failing("connection refused")), time.Second)(context.Background())
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("err = %v", err)
	}
}

func TestPingCheck_Timeout(t *testing.T) {
	blocking := pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := PingCheck(blocking, 20*time.Millisecond)(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestCircuitBreakerCheck(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "kakao-local",
		FailureThreshold: 1,
		Timeout:          time.Minute,
	})
	check := CircuitBreakerCheck(cb)

	if err := check(context.Background()); err != nil {
		t.Errorf("closed breaker: %v", err)
	}

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("upstream 503")
	})

	err := check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "kakao-local") {
		t.Errorf("open breaker err = %v", err)
	}
}
