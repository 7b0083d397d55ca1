// AngelaMos | 2026
// metrics.go

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "entitlements"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)
)

var (
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Access decisions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	DecisionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_errors_total",
			Help:      "Access decisions aborted by a backing store failure",
		},
		[]string{"operation"},
	)

	QuotaChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_quota_checks_total",
			Help:      "Download quota checks by outcome",
		},
		[]string{"allowed", "reason"},
	)

	DownloadsRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_recorded_total",
			Help:      "Download events appended to the ledger",
		},
	)
)

func RecordDecision(operation, outcome string) {
	DecisionsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordDecisionError(operation string) {
	DecisionErrorsTotal.WithLabelValues(operation).Inc()
}

func RecordQuotaCheck(allowed bool, reason string) {
	label := "false"
	if allowed {
		label = "true"
	}
	QuotaChecksTotal.WithLabelValues(label, reason).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
