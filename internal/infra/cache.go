package infra

import (
	"sync"
	"time"
)

type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

// enrichCache is an in-memory TTL cache over enrichment results. Safe for
// concurrent use; a nil cache is a no-op so Enricher works without caching
// when constructed directly in tests.
type enrichCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func newEnrichCache(ttl time.Duration) *enrichCache {
	return &enrichCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *enrichCache) Get(ip string) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[ip]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

func (c *enrichCache) Set(ip string, result *Result) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries[ip] = cacheEntry{
		result:    result,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}
