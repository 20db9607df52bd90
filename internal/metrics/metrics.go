// Package metrics defines the Prometheus collectors of the dashboard service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "dashboard"

// ── HTTP ─────────────────────────────────────────────────────────

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		},
		[]string{"method", "route", "code"},
	)
)

// ── Data provisioning ────────────────────────────────────────────

var (
	// CacheRequests counts cache lookups by record set and result
	// (hit, stale, miss).
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_requests_total",
			Help:      "Dashboard cache lookups by result.",
		},
		[]string{"set", "result"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent loading a record set from the data source, retries included.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"set"},
	)

	// FetchErrors counts failed loads by reason (unavailable, invalid, other).
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed record set loads.",
		},
		[]string{"set", "reason"},
	)

	SnapshotsArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "snapshots_archived_total",
			Help:      "Snapshot archive runs by result.",
		},
		[]string{"result"},
	)

	SnapshotsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "snapshots_pruned_total",
			Help:      "Archived snapshots deleted by retention.",
		},
	)
)

// RecordRequest records one served HTTP request.
func RecordRequest(method, route, code string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
