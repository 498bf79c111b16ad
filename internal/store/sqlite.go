package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const rateSchema = `
CREATE TABLE IF NOT EXISTS rate_events (
	key TEXT NOT NULL,
	ts  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_events_key_ts ON rate_events (key, ts);
`

// SQLiteStore is a RateStore backed by SQLite, for deployments where several
// portal instances must share one rate-limit view.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the rate-event database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, rateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Record implements RateStore.
func (s *SQLiteStore) Record(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_events (key, ts) VALUES (?, ?)`,
		key, now.UnixMilli()); err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}

	cutoff := now.Add(-window).UnixMilli()
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_events WHERE key = ? AND ts > ?`,
		key, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// Prune implements RateStore.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_events WHERE ts <= ?`, before.UnixMilli())
	return err
}

// Close implements RateStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
