package places

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(10)
	ctx := context.Background()

	if v, err := c.Get(ctx, "missing"); v != nil || err != nil {
		t.Errorf("miss = (%v, %v), want (nil, nil)", v, err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, err := c.Get(ctx, "k")
	if err != nil || string(v) != "v" {
		t.Errorf("Get = (%q, %v)", v, err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(10)
	now := time.Date(2024, 8, 29, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)

	now = now.Add(59 * time.Second)
	if v, _ := c.Get(ctx, "k"); v == nil {
		t.Error("entry expired early")
	}

	now = now.Add(time.Second)
	if v, _ := c.Get(ctx, "k"); v != nil {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Error("expired entry should be removed on read")
	}
}

func TestMemoryCache_Eviction(t *testing.T) {
	c := NewMemoryCache(2)
	now := time.Date(2024, 8, 29, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("1"), time.Second)
	_ = c.Set(ctx, "long", []byte("2"), time.Hour)

	now = now.Add(2 * time.Second)
	_ = c.Set(ctx, "new", []byte("3"), time.Hour)

	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if v, _ := c.Get(ctx, "long"); v == nil {
		t.Error("live entry evicted while an expired one was available")
	}
	if v, _ := c.Get(ctx, "new"); v == nil {
		t.Error("new entry missing")
	}

	_ = c.Set(ctx, "fourth", []byte("4"), time.Hour)
	if c.Len() != 2 {
		t.Errorf("Len = %d after forced eviction, want 2", c.Len())
	}
}

func TestMemoryCache_OverwriteDoesNotEvict(t *testing.T) {
	c := NewMemoryCache(1)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("1"), time.Hour)
	_ = c.Set(ctx, "k", []byte("2"), time.Hour)

	v, _ := c.Get(ctx, "k")
	if string(v) != "2" {
		t.Errorf("Get = %q, want 2", v)
	}
}

func TestNoopRateLimiter(t *testing.T) {
	ok, err := NoopRateLimiter{}.Allow(context.Background(), "kakao")
	if !ok || err != nil {
		t.Errorf("Allow = (%v, %v)", ok, err)
	}
}
