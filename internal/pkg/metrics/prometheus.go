package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grafana_publisher",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of publish runs",
		},
		[]string{"mode"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "grafana_publisher",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full publish run in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	publishRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grafana_publisher",
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Per-alert publish outcomes by terminal status",
		},
		[]string{"status"},
	)

	// External API metrics
	externalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grafana_publisher",
			Subsystem: "external",
			Name:      "call_duration_seconds",
			Help:      "Duration of external API calls in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"target", "operation"},
	)

	externalCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grafana_publisher",
			Subsystem: "external",
			Name:      "call_errors_total",
			Help:      "Total number of failed external API calls",
		},
		[]string{"target", "operation"},
	)

	// Schema cache metrics
	schemaCacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grafana_publisher",
			Subsystem: "schema_cache",
			Name:      "events_total",
			Help:      "Schema cache events (hit, miss, stale, error)",
		},
		[]string{"event"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRun records a completed publish run
func RecordRun(mode string, duration time.Duration) {
	runsTotal.WithLabelValues(mode).Inc()
	runDuration.Observe(duration.Seconds())
}

// RecordPublishOutcome records one alert's terminal status
func RecordPublishOutcome(status string) {
	publishRecordsTotal.WithLabelValues(status).Inc()
}

// RecordExternalCall records the duration and outcome of an external API call
func RecordExternalCall(target, operation string, duration time.Duration, err error) {
	externalCallDuration.WithLabelValues(target, operation).Observe(duration.Seconds())
	if err != nil {
		externalCallErrors.WithLabelValues(target, operation).Inc()
	}
}

// Schema cache event names
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
	CacheError = "error"
)

// RecordSchemaCacheEvent records a schema cache lookup outcome
func RecordSchemaCacheEvent(event string) {
	schemaCacheEvents.WithLabelValues(event).Inc()
}
