// Package bootstrap assembles the service from its configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seoulsafe/sinkhole-api/account"
	"github.com/seoulsafe/sinkhole-api/api"
	"github.com/seoulsafe/sinkhole-api/auth"
	"github.com/seoulsafe/sinkhole-api/config"
	"github.com/seoulsafe/sinkhole-api/database"
	"github.com/seoulsafe/sinkhole-api/hazard"
	"github.com/seoulsafe/sinkhole-api/health"
	apphttp "github.com/seoulsafe/sinkhole-api/http"
	"github.com/seoulsafe/sinkhole-api/logging"
	"github.com/seoulsafe/sinkhole-api/places"
	"github.com/seoulsafe/sinkhole-api/telemetry"
)

// Service holds all initialized components.
type Service struct {
	Config      *config.Config
	Logger      *logging.Logger
	Connections *database.Connections
	Telemetry   *telemetry.Telemetry
	Handler     *api.Handler
	Server      *apphttp.Server

	insights *logging.AppInsightsClient
}

// Options adjusts initialization.
type Options struct {
	// Skip schema migrations on startup.
	SkipMigrations bool
}

// Initialize loads configuration (Key Vault outside development), opens the
// stores and builds the HTTP server.
func Initialize(ctx context.Context, serviceName string, opts Options) (*Service, error) {
	cfg, err := config.Load(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return New(ctx, cfg, opts)
}

// New builds the service from an already loaded configuration. On error,
// everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Service, error) {
	svc := &Service{Config: cfg}
	if err := svc.init(ctx, opts); err != nil {
		_ = svc.Close(context.Background())
		return nil, err
	}
	return svc, nil
}

func (svc *Service) init(ctx context.Context, opts Options) error {
	cfg := svc.Config

	svc.insights = logging.NewAppInsightsClient(cfg.AppInsightsKey)
	svc.Logger = logging.New(logging.Options{Level: cfg.LogLevel, Insights: svc.insights}).
		WithService(cfg.ServiceName)

	svc.Logger.Info("starting service",
		"environment", cfg.Environment,
		"version", cfg.Version,
		"key_vault", valueOrNone(cfg.KeyVaultName),
	)

	var err error
	svc.Telemetry, err = telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		OTLPInsecure:   cfg.OTLPInsecure,
		SampleRate:     cfg.TraceSampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	svc.Connections, err = openConnections(ctx, cfg, svc.Logger)
	if err != nil {
		return fmt.Errorf("failed to create database connections: %w", err)
	}

	if !opts.SkipMigrations {
		applied, err := account.Migrate(ctx, svc.Connections.SQL)
		if err != nil {
			return err
		}
		svc.Logger.Info("migrations applied", "count", applied)
	}

	baseline, err := hazard.ParseBaseline(cfg.RiskBaseline)
	if err != nil {
		return err
	}

	jwt := auth.NewJWTManager(auth.JWTConfig{
		Secret:       cfg.JWTSecret,
		Issuer:       cfg.JWTIssuer,
		Audience:     cfg.JWTAudience,
		AccessExpiry: cfg.AccessTokenExpiry,
	})

	placesClient := newPlacesClient(cfg, svc)

	checker := health.NewChecker(cfg.Version)
	checker.AddCheck("sql", health.PingCheck(svc.Connections.SQL, 2*time.Second), true)
	if svc.Connections.Redis != nil {
		checker.AddCheck("redis", health.PingCheck(svc.Connections.Redis, 2*time.Second), false)
	}
	checker.AddCheck("kakao", health.CircuitBreakerCheck(placesClient.CircuitBreaker()), false)

	table := hazard.DefaultTable()
	svc.Handler = api.NewHandler(api.Deps{
		Logger: svc.Logger,
		Audit: logging.NewAuditLogger(logging.AuditLoggerConfig{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Environment,
			Logger:      svc.Logger.Logger,
			Insights:    svc.insights,
		}),
		Table:       table,
		Estimator:   hazard.NewEstimator(table, hazard.WithBaseline(baseline)),
		Advisor:     hazard.NewAdvisor(table),
		Accounts:    account.NewService(account.NewSQLStore(svc.Connections.SQL), jwt),
		JWT:         jwt,
		Places:      placesClient,
		Health:      checker,
		Tracer:      svc.Telemetry.Tracer(),
		HTTPMetrics: svc.Telemetry.HTTPMetrics(),
		Metrics:     svc.Telemetry.AdvisoryMetrics(),
		CORSOrigins: cfg.CORSAllowedOrigins,
		RateLimit: &apphttp.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
			CleanupInterval:   time.Minute,
		},
	})

	svc.Server = apphttp.NewServer(apphttp.ServerConfig{
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, svc.Handler, svc.Logger)

	return nil
}

func openConnections(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*database.Connections, error) {
	driver, err := database.ParseDriver(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	dbConfig := database.DefaultConnectionConfig()
	dbConfig.Logger = logger.Logger
	dbConfig.SQL.Driver = driver
	dbConfig.SQL.DSN = cfg.DBDSN
	logger.Info("sql configured", "driver", string(driver))

	if cfg.RedisHost != "" {
		dbConfig.Redis = dbConfig.Redis.ParseRedisAddr(cfg.RedisHost)
		dbConfig.Redis.Password = cfg.RedisPassword
		dbConfig.Redis.TLSEnabled = cfg.RedisTLS
		logger.Info("redis configured", "host", dbConfig.Redis.Host, "port", dbConfig.Redis.Port)
	}

	return database.NewConnections(ctx, dbConfig)
}

// newPlacesClient shares results and the upstream quota through Redis when
// it is configured, and falls back to a process-local cache otherwise.
func newPlacesClient(cfg *config.Config, svc *Service) *places.Client {
	placesCfg := places.DefaultConfig(cfg.KakaoAPIKey)
	if cfg.PlacesTimeout > 0 {
		placesCfg.Timeout = cfg.PlacesTimeout
	}
	if cfg.PlacesCacheTTL > 0 {
		placesCfg.CacheTTL = cfg.PlacesCacheTTL
	}

	var (
		cache   places.Cache
		limiter places.RateLimiter = places.NoopRateLimiter{}
	)
	if svc.Connections.Redis != nil {
		rdb := svc.Connections.Redis.Client()
		cache = places.NewRedisCache(rdb, "")
		limiterCfg := places.DefaultRateLimiterConfig()
		limiterCfg.Limit = cfg.PlacesRateLimit
		limiter = places.NewRedisRateLimiter(rdb, limiterCfg)
	} else {
		cache = places.NewMemoryCache(0)
	}

	if cfg.KakaoAPIKey == "" {
		svc.Logger.Warn("KAKAO_REST_API_KEY not set; place search returns empty results")
	}

	return places.NewClient(placesCfg, svc.Logger, cache, limiter,
		places.WithTracer(svc.Telemetry.Tracer()),
		places.WithMetrics(svc.Telemetry.AdvisoryMetrics()),
		places.WithInsights(svc.insights),
	)
}

// Run serves HTTP until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	return svc.Server.Run(ctx)
}

// Close releases every resource. It is safe on a partially built service.
func (svc *Service) Close(ctx context.Context) error {
	var errs []error
	if svc.Handler != nil {
		svc.Handler.Close()
	}
	if svc.Connections != nil {
		svc.Connections.Close()
	}
	if svc.Telemetry != nil {
		if err := svc.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	svc.insights.Close(5 * time.Second)
	return errors.Join(errs...)
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none - using env vars)"
	}
	return s
}
