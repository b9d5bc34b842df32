package http

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/seoulsafe/sinkhole-api/errors"
	"github.com/seoulsafe/sinkhole-api/logging"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	// RequestsPerSecond is the refill rate of each bucket.
	RequestsPerSecond float64
	// BurstSize is the bucket capacity.
	BurstSize int
	// KeyFunc extracts the rate limit key. Defaults to the client IP.
	KeyFunc func(r *http.Request) string
	// ExcludeFunc lets matching requests bypass the limiter.
	ExcludeFunc func(r *http.Request) bool
	// OnLimitExceeded is called for each rejected request.
	OnLimitExceeded func(r *http.Request, key string)
	// CleanupInterval is how often idle buckets are dropped. Zero disables
	// the cleanup goroutine.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns per-client defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		KeyFunc:           logging.ClientIP,
		CleanupInterval:   time.Minute,
	}
}

// TokenBucket implements the token bucket algorithm.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a full token bucket.
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return newTokenBucket(maxTokens, refillRate, time.Now)
}

func newTokenBucket(maxTokens, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(b.maxTokens, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// Allow consumes a token if one is available.
func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Tokens returns the number of available tokens.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return b.tokens
}

// RateLimiter applies a token bucket per key.
type RateLimiter struct {
	config  RateLimiterConfig
	buckets sync.Map // map[string]*TokenBucket
	now     func() time.Time
	cancel  context.CancelFunc
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	defaults := DefaultRateLimiterConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.BurstSize <= 0 {
		config.BurstSize = defaults.BurstSize
	}
	if config.KeyFunc == nil {
		config.KeyFunc = defaults.KeyFunc
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl := &RateLimiter{
		config: config,
		now:    time.Now,
		cancel: cancel,
	}
	if config.CleanupInterval > 0 {
		go rl.cleanupLoop(ctx)
	}
	return rl
}

func (rl *RateLimiter) bucket(key string) *TokenBucket {
	if b, ok := rl.buckets.Load(key); ok {
		return b.(*TokenBucket)
	}
	b := newTokenBucket(float64(rl.config.BurstSize), rl.config.RequestsPerSecond, rl.now)
	actual, _ := rl.buckets.LoadOrStore(key, b)
	return actual.(*TokenBucket)
}

// Allow reports whether r may proceed and consumes a token if so.
func (rl *RateLimiter) Allow(r *http.Request) bool {
	if rl.config.ExcludeFunc != nil && rl.config.ExcludeFunc(r) {
		return true
	}

	key := rl.config.KeyFunc(r)
	if !rl.bucket(key).Allow() {
		if rl.config.OnLimitExceeded != nil {
			rl.config.OnLimitExceeded(r, key)
		}
		return false
	}
	return true
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup drops buckets that have refilled completely.
func (rl *RateLimiter) cleanup() {
	rl.buckets.Range(func(key, value interface{}) bool {
		if value.(*TokenBucket).Tokens() >= float64(rl.config.BurstSize) {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// Close stops the cleanup loop.
func (rl *RateLimiter) Close() {
	rl.cancel()
}

// Middleware rejects requests over the limit with 429 and the error envelope.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := strconv.Itoa(rl.config.BurstSize)
		if !rl.Allow(r) {
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfterSeconds()))
			errors.WriteError(w, errors.RateLimited("Too many requests. Please slow down."), middleware.GetReqID(r.Context()))
			return
		}

		remaining := rl.bucket(rl.config.KeyFunc(r)).Tokens()
		w.Header().Set("X-RateLimit-Limit", limit)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(remaining)))
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) retryAfterSeconds() int {
	return int(math.Max(1, math.Ceil(1/rl.config.RequestsPerSecond)))
}
