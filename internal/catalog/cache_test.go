package catalog

import (
	"context"
	"testing"
	"time"
)

func newTestMemoryCache(ttl time.Duration) (*MemoryCache, *time.Time) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_GetWithinTTL(t *testing.T) {
	c, now := newTestMemoryCache(5 * time.Minute)
	ctx := context.Background()

	c.Set(ctx, "jikan:trending:", []byte(`[1]`))
	*now = now.Add(5 * time.Minute)

	got, ok := c.Get(ctx, "jikan:trending:")
	if !ok || string(got) != `[1]` {
		t.Errorf("Get = %q, %v; want [1], true", got, ok)
	}
}

func TestMemoryCache_ExpiredIsAbsent(t *testing.T) {
	c, now := newTestMemoryCache(5 * time.Minute)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"))
	*now = now.Add(5*time.Minute + time.Second)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expired entry should be absent")
	}
}

func TestMemoryCache_SetCopiesPayload(t *testing.T) {
	c, _ := newTestMemoryCache(time.Minute)
	ctx := context.Background()

	buf := []byte("abc")
	c.Set(ctx, "k", buf)
	buf[0] = 'x'

	got, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Get = %q, want abc", got)
	}
}

func TestMemoryCache_Sweep(t *testing.T) {
	c, now := newTestMemoryCache(time.Minute)
	ctx := context.Background()

	c.Set(ctx, "old", []byte("1"))
	*now = now.Add(45 * time.Second)
	c.Set(ctx, "new", []byte("2"))
	*now = now.Add(30 * time.Second)

	removed, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if _, ok := c.Get(ctx, "new"); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}
