// Package config loads service configuration from the environment and, in
// deployed environments, secrets from Azure Key Vault.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the sinkhole API configuration.
type Config struct {
	// Service identification
	ServiceName string
	Environment string
	Version     string

	// HTTP server
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Logging
	LogLevel string

	// Azure
	KeyVaultName   string
	AppInsightsKey string

	// Storage
	DBDriver      string
	DBDSN         string
	RedisHost     string
	RedisPassword string
	RedisTLS      bool

	// JWT
	JWTSecret         string
	JWTIssuer         string
	JWTAudience       string
	AccessTokenExpiry time.Duration

	// Place search
	KakaoAPIKey     string
	PlacesTimeout   time.Duration
	PlacesCacheTTL  time.Duration
	PlacesRateLimit int

	// HTTP edge
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Risk estimation
	RiskBaseline string

	// Telemetry
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceSampleRate float64
}

// SecretSource reads named secrets.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Load reads configuration from environment variables. Outside development,
// when KEY_VAULT_NAME is set, secrets are read from Key Vault and override
// their environment counterparts.
func Load(ctx context.Context, serviceName string) (*Config, error) {
	cfg := fromEnv(serviceName)

	if cfg.KeyVaultName != "" && !cfg.IsDevelopment() {
		kv, err := NewKeyVaultClient(cfg.KeyVaultName)
		if err != nil {
			return nil, fmt.Errorf("failed to load secrets from Key Vault: %w", err)
		}
		cfg.loadSecrets(ctx, kv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error.
func MustLoad(ctx context.Context, serviceName string) *Config {
	cfg, err := Load(ctx, serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func fromEnv(serviceName string) *Config {
	cfg := &Config{
		ServiceName:     serviceName,
		Environment:     getEnv("ENVIRONMENT", "development"),
		Version:         getEnv("VERSION", "0.0.1"),
		Port:            getEnvInt("PORT", 8000),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 20*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		KeyVaultName:    getEnv("KEY_VAULT_NAME", ""),
		AppInsightsKey:  getEnv("APPINSIGHTS_INSTRUMENTATIONKEY", ""),

		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:         getEnv("DB_DSN", "file:sinkhole.db"),
		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTIssuer:         getEnv("JWT_ISSUER", "sinkhole-api"),
		JWTAudience:       getEnv("JWT_AUDIENCE", "sinkhole-web"),
		AccessTokenExpiry: getEnvDuration("ACCESS_TOKEN_EXPIRY", 30*time.Minute),

		KakaoAPIKey:     getEnv("KAKAO_REST_API_KEY", ""),
		PlacesTimeout:   getEnvDuration("PLACES_TIMEOUT", 5*time.Second),
		PlacesCacheTTL:  getEnvDuration("PLACES_CACHE_TTL", time.Hour),
		PlacesRateLimit: getEnvInt("PLACES_RATE_LIMIT", 10),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 20),

		RiskBaseline: strings.ToLower(getEnv("RISK_BASELINE", "decay")),

		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSampleRate: getEnvFloat("OTEL_TRACES_SAMPLE_RATE", 1.0),
	}
	cfg.RedisTLS = getEnvBool("REDIS_TLS", !cfg.IsDevelopment())

	// Only development gets a built-in signing key.
	if cfg.IsDevelopment() {
		cfg.JWTSecret = getEnv("JWT_SECRET", "development-only-secret-do-not-use-in-prod")
	} else {
		cfg.JWTSecret = getEnv("JWT_SECRET", "")
	}
	return cfg
}

// loadSecrets overrides fields with Key Vault values. A secret that cannot
// be read keeps the environment value.
func (c *Config) loadSecrets(ctx context.Context, src SecretSource) {
	secrets := map[string]*string{
		"jwt-secret":         &c.JWTSecret,
		"kakao-rest-api-key": &c.KakaoAPIKey,
		"redis-password":     &c.RedisPassword,
		"sql-dsn":            &c.DBDSN,
		"appinsights-key":    &c.AppInsightsKey,
	}

	for name, ptr := range secrets {
		value, err := src.GetSecret(ctx, name)
		if err != nil || value == "" {
			continue
		}
		*ptr = value
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	switch c.DBDriver {
	case "sqlite", "sqlserver":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or sqlserver, got %q", c.DBDriver)
	}
	switch c.RiskBaseline {
	case "decay", "random":
	default:
		return fmt.Errorf("RISK_BASELINE must be decay or random, got %q", c.RiskBaseline)
	}
	if c.AccessTokenExpiry <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
