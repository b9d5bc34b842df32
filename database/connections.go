package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Connections holds the service's backing stores. Redis is optional.
type Connections struct {
	SQL    *SQLClient
	Redis  *RedisClient
	Config ConnectionConfig
}

// ConnectionConfig holds all store configuration.
type ConnectionConfig struct {
	SQL SQLConfig
	// Redis is skipped when Redis.Host is empty.
	Redis RedisConfig

	MaxRetries  int
	RetryDelay  time.Duration
	ConnTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConnectionConfig returns a local SQLite setup without Redis.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		SQL:         DefaultSQLConfig(),
		Redis:       DefaultRedisConfig(),
		MaxRetries:  5,
		RetryDelay:  time.Second,
		ConnTimeout: 30 * time.Second,
	}
}

// NewConnections opens every configured store, retrying each with a fixed
// delay before giving up.
func NewConnections(ctx context.Context, config ConnectionConfig) (*Connections, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.ConnTimeout <= 0 {
		config.ConnTimeout = 30 * time.Second
	}

	conns := &Connections{Config: config}

	sqlClient, err := connectWithRetry(ctx, logger, config, "sql", func(ctx context.Context) (*SQLClient, error) {
		return NewSQLClient(ctx, config.SQL)
	})
	if err != nil {
		return nil, err
	}
	conns.SQL = sqlClient

	if config.Redis.Host != "" {
		redisClient, err := connectWithRetry(ctx, logger, config, "redis", func(ctx context.Context) (*RedisClient, error) {
			return NewRedisClient(ctx, config.Redis)
		})
		if err != nil {
			conns.Close()
			return nil, err
		}
		conns.Redis = redisClient
	}

	return conns, nil
}

func connectWithRetry[T any](ctx context.Context, logger *slog.Logger, config ConnectionConfig, store string, connect func(context.Context) (T, error)) (T, error) {
	var (
		client T
		err    error
	)
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, config.ConnTimeout)
		client, err = connect(attemptCtx)
		cancel()
		if err == nil {
			logger.Info("connected", "store", store, "attempt", attempt+1)
			return client, nil
		}
		if attempt == config.MaxRetries {
			break
		}
		logger.Warn("connection attempt failed",
			"store", store,
			"attempt", attempt+1,
			"retry_in", config.RetryDelay.String(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return client, ctx.Err()
		case <-time.After(config.RetryDelay):
		}
	}
	return client, fmt.Errorf("failed to connect to %s after %d attempts: %w", store, config.MaxRetries+1, err)
}

// Close closes all connections.
func (c *Connections) Close() {
	logger := c.Config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if c.SQL != nil {
		if err := c.SQL.Close(); err != nil {
			logger.Error("closing sql connection", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Error("closing redis connection", "error", err)
		}
	}
}

// HealthCheck pings every open connection. A nil value means healthy.
func (c *Connections) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error)
	if c.SQL != nil {
		results["sql"] = c.SQL.Ping(ctx)
	}
	if c.Redis != nil {
		results["redis"] = c.Redis.Ping(ctx)
	}
	return results
}
