package places

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter caps calls to the upstream provider across instances.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisRateLimiter is a sliding-window limiter over a Redis sorted set.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
	limit     int
	window    time.Duration
	now       func() time.Time
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	KeyPrefix string
	Limit     int           // requests per window
	Window    time.Duration // window size
}

// DefaultRateLimiterConfig returns a limit of 10 upstream calls per second.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		KeyPrefix: "places:ratelimit:",
		Limit:     10,
		Window:    time.Second,
	}
}

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client redis.UniversalClient, config RateLimiterConfig) *RedisRateLimiter {
	defaults := DefaultRateLimiterConfig()
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}
	if config.Limit <= 0 {
		config.Limit = defaults.Limit
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: config.KeyPrefix,
		limit:     config.Limit,
		window:    config.Window,
		now:       time.Now,
	}
}

// slidingWindow trims entries older than the window, then records this call
// if the remaining count is under the limit. Returns 1 when allowed.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
if redis.call('ZCARD', key) < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window_ms)
	return 1
end
return 0
`)

// Allow records a call and reports whether it fits in the window.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now()
	res, err := slidingWindow.Run(ctx, r.client, []string{r.keyPrefix + key},
		r.limit,
		now.Add(-r.window).UnixMicro(),
		now.UnixMicro(),
		r.window.Milliseconds(),
		uuid.NewString(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}
	return res == 1, nil
}

// NoopRateLimiter allows everything.
type NoopRateLimiter struct{}

// Allow always returns true.
func (NoopRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return true, nil
}
