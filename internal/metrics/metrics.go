// Package metrics exposes Prometheus collectors for the sync engine and its
// HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UsersTotal counts users with a settings row, split by key scheme.
	UsersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "equicloud_users_total",
			Help: "Total number of users with a settings row, by key scheme",
		},
		[]string{"scheme"},
	)

	DataEntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "equicloud_data_entries_total",
			Help: "Total number of data entries across all users",
		},
	)

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equicloud_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equicloud_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	RateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "equicloud_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	LegacyMigrationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "equicloud_legacy_migrations_total",
			Help: "Total number of legacy-key settings rows migrated to the current scheme",
		},
	)

	LegacyAuthTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "equicloud_legacy_auth_total",
			Help: "Total number of requests authenticated with a legacy secret",
		},
	)

	SyncUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equicloud_sync_uploads_total",
			Help: "Total delta-sync upload outcomes",
		},
		[]string{"outcome"}, // accepted, dropped_dominance, rejected
	)

	SyncDownloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "equicloud_sync_downloads_total",
			Help: "Total number of keys returned in sync download sets",
		},
	)

	HealthProbeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "equicloud_health_probe_failures_total",
			Help: "Total number of storage health probe failures observed",
		},
	)

	StorageOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equicloud_storage_op_duration_seconds",
			Help:    "Storage adapter operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	ProcessUptimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "equicloud_process_uptime_seconds",
			Help: "Seconds since the process started",
		},
	)
)

func init() {
	prometheus.MustRegister(
		UsersTotal,
		DataEntriesTotal,
		APIRequestsTotal,
		APIRequestDuration,
		RateLimitRejectionsTotal,
		LegacyMigrationsTotal,
		LegacyAuthTotal,
		SyncUploadsTotal,
		SyncDownloadsTotal,
		HealthProbeFailuresTotal,
		StorageOpDuration,
		ProcessUptimeSeconds,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
