package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/secdesk/abuse-portal/internal/metrics"
	"github.com/secdesk/abuse-portal/internal/store"
)

// rateWindow is the sliding window the per-IP limit is evaluated over.
const rateWindow = 1 * time.Minute

// RateLimiter enforces a per-IP sliding-window request limit over an
// injected RateStore. A background goroutine prunes stale events; call
// Stop() to release it.
type RateLimiter struct {
	store  store.RateStore
	limit  int
	logger *slog.Logger
	stopCh chan struct{}
}

// NewRateLimiter creates a limiter allowing limit requests per IP per
// sliding minute and starts the cleanup goroutine.
func NewRateLimiter(st store.RateStore, limit int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	rl := &RateLimiter{
		store:  st,
		limit:  limit,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Stop halts the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rateWindow)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := rl.store.Prune(ctx, time.Now().Add(-rateWindow)); err != nil {
				rl.logger.Warn("rate store prune failed", "error", err)
			}
			cancel()
		}
	}
}

// Allow records a request for ip and reports whether it is within the limit.
// Store failures fail open: a broken limiter backend must not take the API
// down with it.
func (rl *RateLimiter) Allow(ctx context.Context, ip string) bool {
	count, err := rl.store.Record(ctx, ip, time.Now(), rateWindow)
	if err != nil {
		rl.logger.Warn("rate store record failed", "ip", ip, "error", err)
		return true
	}
	return count <= rl.limit
}

// RateLimitMiddleware enforces the per-IP limit on all requests, returning
// 429 with Retry-After when exceeded.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractIP(r)
			if !rl.Allow(r.Context(), ip) {
				metrics.RateLimitRejectedTotal.Inc()
				w.Header().Set("Retry-After", "60")
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
