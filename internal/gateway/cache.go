package gateway

import (
	"sync"
	"time"
)

// defaultCacheTTL bounds how long bulletin data is served without a
// revalidation. It matches the Cache-Control max-age the handlers advertise.
const defaultCacheTTL = 1 * time.Hour

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// ttlCache is a small in-memory cache with per-entry expiration. All methods
// are safe for concurrent use and nil-receiver safe (a nil cache is a no-op,
// which lets clients be constructed without caching in tests).
type ttlCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]cacheEntry[V]
	ttl     time.Duration
}

func newTTLCache[K comparable, V any](ttl time.Duration) *ttlCache[K, V] {
	return &ttlCache[K, V]{
		entries: make(map[K]cacheEntry[V]),
		ttl:     ttl,
	}
}

// Get returns the cached value and true if the key exists and has not
// expired.
func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores a value with the cache's default TTL.
func (c *ttlCache[K, V]) Set(key K, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Purge drops every entry, forcing the next Get to miss.
func (c *ttlCache[K, V]) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[K]cacheEntry[V])
	c.mu.Unlock()
}
