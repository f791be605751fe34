package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	dispatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_requests_total",
			Help: "Total number of requests processed, labeled by outcome",
		},
		[]string{"outcome"}, // matched, not_matched, proxied, looped
	)

	dispatchActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_action_duration_seconds",
			Help:    "Time spent executing a matched action, labeled by action kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	dispatchForwardTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_forward_total",
			Help: "Total number of forwarded requests, labeled by result",
		},
		[]string{"result"}, // success, connection_error, communication_error
	)

	peerConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_peer_connections_active",
			Help: "Number of active persistent peer-callback channels",
		},
	)
)

// RecordRequestOutcome increments dispatch_requests_total for outcome.
func RecordRequestOutcome(outcome string) {
	dispatchRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveActionDuration records how long executing an action of kind took.
func ObserveActionDuration(kind string, duration time.Duration) {
	dispatchActionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordForwardResult increments dispatch_forward_total for result.
func RecordForwardResult(result string) {
	dispatchForwardTotal.WithLabelValues(result).Inc()
}

// RecordPeerConnection adjusts the active peer-callback connection gauge.
func RecordPeerConnection(delta int) {
	peerConnectionsActive.Add(float64(delta))
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
