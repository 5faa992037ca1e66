// Package memory is the in-process cache backend with explicit per-entry expiry.
package memory

import (
	"context"
	"sync"
	"time"

	"storefinder/internal/adapters/observability"
)

type entry struct {
	b         []byte
	createdAt time.Time
	expiresAt time.Time
}

type Cache struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

func New() *Cache {
	return &Cache{m: make(map[string]entry), now: time.Now}
}

// WithClock replaces the time source (tests).
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) Name() string { return "memory" }

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	if !ok {
		observability.ObserveCache("memory", "miss")
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// re-check: a concurrent Set may have refreshed it
		if cur, ok := c.m[key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		observability.ObserveCache("memory", "miss")
		return nil, false, nil
	}
	observability.ObserveCache("memory", "hit")
	return append([]byte(nil), e.b...), true, nil
}

func (c *Cache) Set(_ context.Context, key string, b []byte, ttl time.Duration) error {
	now := c.now()
	e := entry{b: append([]byte(nil), b...), createdAt: now, expiresAt: now.Add(ttl)}
	c.mu.Lock()
	c.m[key] = e
	c.mu.Unlock()
	observability.ObserveCache("memory", "set")
	return nil
}

// Sweep deletes entries expired at now and returns how many were removed.
// It holds the write lock for a single pass over the map.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.m {
		if !now.Before(e.expiresAt) {
			delete(c.m, k)
			n++
		}
	}
	if n > 0 {
		observability.ObserveCacheN("memory", "evict", n)
	}
	return n
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
