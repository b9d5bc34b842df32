package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seoulsafe/sinkhole-api/config"
	"github.com/seoulsafe/sinkhole-api/health"
)

func testConfig() *config.Config {
	return &config.Config{
		ServiceName:        "sinkhole-api",
		Environment:        "development",
		Version:            "test",
		Port:               0,
		ShutdownTimeout:    time.Second,
		LogLevel:           "error",
		DBDriver:           "sqlite",
		DBDSN:              ":memory:",
		JWTSecret:          "test-secret-key-that-is-long-enough",
		AccessTokenExpiry:  30 * time.Minute,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimitRPS:       100,
		RateLimitBurst:     100,
		RiskBaseline:       "decay",
	}
}

func TestNew_Readiness(t *testing.T) {
	ctx := context.Background()
	svc, err := New(ctx, testConfig(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	rec := httptest.NewRecorder()
	svc.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp health.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != health.StatusHealthy {
		t.Errorf("status = %s, want healthy", resp.Status)
	}
	names := map[string]bool{}
	for _, c := range resp.Checks {
		names[c.Name] = true
	}
	if !names["sql"] || !names["kakao"] || names["redis"] {
		t.Errorf("checks = %v, want sql and kakao only", names)
	}
}

func TestNew_PlaceSearchWithoutKey(t *testing.T) {
	svc, err := New(context.Background(), testConfig(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	rec := httptest.NewRecorder()
	svc.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search-location?query=%EB%AA%85%EB%8F%99", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Places []json.RawMessage `json:"places"`
		Error  string            `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Places) != 0 || body.Error == "" {
		t.Errorf("body = %s, want empty places with error", rec.Body.String())
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown driver", func(c *config.Config) { c.DBDriver = "postgres" }},
		{"unknown baseline", func(c *config.Config) { c.RiskBaseline = "gaussian" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			svc, err := New(context.Background(), cfg, Options{})
			if err == nil {
				_ = svc.Close(context.Background())
				t.Fatal("expected error")
			}
			if svc != nil {
				t.Error("service returned alongside error")
			}
		})
	}
}

func TestServe_Shutdown(t *testing.T) {
	svc, err := New(context.Background(), testConfig(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
