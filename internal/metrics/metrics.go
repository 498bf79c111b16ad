// Package metrics exposes the portal's Prometheus instrumentation on a
// private registry.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	reg = prometheus.NewRegistry()

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rate_limiter_rejected_total", Help: "Requests rejected by the rate limiter"},
	)
	ReportDispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "report_dispatches_total", Help: "Abuse report dispatches by outcome"},
		[]string{"outcome"},
	)
	BulletinRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bulletin_refresh_total", Help: "Security-update cache refreshes by result"},
		[]string{"result"},
	)
)

var registered atomic.Bool

// Register installs all collectors on the private registry, once.
func Register() {
	if registered.Swap(true) {
		return
	}
	reg.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, RateLimitRejectedTotal,
		ReportDispatchesTotal, BulletinRefreshTotal)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one served request.
func ObserveRequest(method, path string, statusCode int, dur time.Duration) {
	Register()
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(dur.Seconds())
}
