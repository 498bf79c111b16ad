// Package store provides the injected backing store for the sliding-window
// rate limiter. Single-instance deployments use the in-memory store; shared
// deployments can point multiple instances at one SQLite database. The store
// is constructed at process start and passed in explicitly; nothing in the
// portal relies on a package-level singleton.
package store

import (
	"context"
	"time"
)

// RateStore records request events per key and counts them within a sliding
// window.
type RateStore interface {
	// Record adds an event for key at now and returns the number of events
	// for that key in (now-window, now], including the one just added.
	Record(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
	// Prune discards events older than before.
	Prune(ctx context.Context, before time.Time) error
	// Close releases any resources held by the store.
	Close() error
}
