package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests handled by the gateway",
		},
		[]string{"method", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Access gating metrics
	redirectDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_redirect_decisions_total",
			Help: "Total number of redirect decisions by outcome",
		},
		[]string{"outcome"},
	)

	// Upload relay metrics
	relayOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_relay_outcomes_total",
			Help: "Total number of upload relay attempts by outcome",
		},
		[]string{"outcome"},
	)

	relayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_relay_duration_seconds",
			Help:    "Duration of upload relay calls in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900, 1800},
		},
	)

	// Rate limiting metrics
	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		redirectDecisionsTotal,
		relayOutcomesTotal,
		relayDuration,
		rateLimitedTotal,
	)
}
