//go:build integration

package places

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgtesting "github.com/seoulsafe/sinkhole-api/testing"
)

func newRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	ctx := context.Background()

	container, err := pkgtesting.StartRedisContainer(ctx)
	if err != nil {
		t.Fatalf("failed to start redis: %v", err)
	}
	t.Cleanup(pkgtesting.CleanupContainer(ctx, container))

	client := redis.NewClient(&redis.Options{Addr: container.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCache(t *testing.T) {
	rdb := newRedis(t)
	cache := NewRedisCache(rdb, "")
	ctx := context.Background()

	if v, err := cache.Get(ctx, "명동"); v != nil || err != nil {
		t.Fatalf("miss = (%v, %v)", v, err)
	}
	if err := cache.Set(ctx, "명동", []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, err := cache.Get(ctx, "명동")
	if err != nil || string(v) != `[]` {
		t.Errorf("Get = (%q, %v)", v, err)
	}

	ttl, err := rdb.TTL(ctx, "places:명동").Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = (%v, %v)", ttl, err)
	}
}

func TestRedisRateLimiter_SlidingWindow(t *testing.T) {
	rdb := newRedis(t)
	limiter := NewRedisRateLimiter(rdb, RateLimiterConfig{Limit: 3, Window: time.Minute})
	now := time.Date(2024, 8, 29, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "kakao")
		if err != nil || !ok {
			t.Fatalf("call %d: Allow = (%v, %v)", i, ok, err)
		}
		now = now.Add(time.Second)
	}
	if ok, _ := limiter.Allow(ctx, "kakao"); ok {
		t.Error("fourth call within the window should be denied")
	}

	now = now.Add(time.Minute)
	if ok, _ := limiter.Allow(ctx, "kakao"); !ok {
		t.Error("call after the window should be allowed")
	}
}

func TestSearch_SharedRedisCache(t *testing.T) {
	rdb := newRedis(t)
	fake := newFakeKakao(t, okHandler)

	a := newTestClient(t, fake.server.URL, NewRedisCache(rdb, ""), NewRedisRateLimiter(rdb, DefaultRateLimiterConfig()))
	b := newTestClient(t, fake.server.URL, NewRedisCache(rdb, ""), NewRedisRateLimiter(rdb, DefaultRateLimiterConfig()))
	ctx := context.Background()

	if res := a.Search(ctx, "명동"); res.Error != "" {
		t.Fatalf("first search degraded: %s", res.Error)
	}
	res := b.Search(ctx, "명동")
	if len(res.Places) != 2 {
		t.Errorf("expected cached places, got %+v", res)
	}
	if got := fake.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}
