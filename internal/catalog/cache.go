package catalog

import (
	"context"
	"sync"
	"time"
)

// Cache は正規化済みレスポンスをJSONバイト列で保持するキャッシュ。
// TTLを過ぎたエントリは存在しないものとして扱われる。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
}

type cacheEntry struct {
	storedAt time.Time
	payload  []byte
}

// MemoryCache はプロセス内のTTL付きキャッシュ。永続化はせず、ミス時に遅延して埋まる。
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewMemoryCache はMemoryCacheを生成する。
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get はTTL内のエントリを返す。
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.payload, true
}

// Set はエントリを保存する。同じキーの既存エントリは上書きされる。
func (c *MemoryCache) Set(_ context.Context, key string, payload []byte) {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	c.mu.Lock()
	c.entries[key] = cacheEntry{storedAt: c.now(), payload: buf}
	c.mu.Unlock()
}

// Sweep はTTLを過ぎたエントリを削除し、削除件数を返す。
func (c *MemoryCache) Sweep(_ context.Context) (int, error) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len は保持しているエントリ数（期限切れを含む）を返す。
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
