package store

import (
	"context"
	"sync"
	"time"
)

// maxTrackedKeys caps how many keys the memory store tracks before it
// force-prunes inline; a scanner cycling source addresses must not grow the
// map without bound between cleanup ticks.
const maxTrackedKeys = 10000

// MemoryStore is a RateStore backed by a per-key slice of event timestamps.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryStore creates an in-memory rate store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]time.Time),
	}
}

// Record implements RateStore.
func (m *MemoryStore) Record(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	cutoff := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) > maxTrackedKeys {
		m.pruneLocked(cutoff)
	}

	kept := m.events[key][:0]
	for _, ts := range m.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	m.events[key] = kept
	return len(kept), nil
}

// Prune implements RateStore.
func (m *MemoryStore) Prune(_ context.Context, before time.Time) error {
	m.mu.Lock()
	m.pruneLocked(before)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) pruneLocked(before time.Time) {
	for key, evs := range m.events {
		kept := evs[:0]
		for _, ts := range evs {
			if ts.After(before) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(m.events, key)
		} else {
			m.events[key] = kept
		}
	}
}

// Close implements RateStore.
func (m *MemoryStore) Close() error { return nil }
