package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patientapp_turns_total",
			Help: "Total number of processed conversation turns",
		},
		[]string{"outcome"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patientapp_stage_duration_seconds",
			Help:    "Stage evaluation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	stageFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patientapp_stage_fallbacks_total",
			Help: "Total number of rule fallbacks after reasoner failures",
		},
		[]string{"stage"},
	)

	securityVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patientapp_security_verdicts_total",
			Help: "Total number of security screen verdicts",
		},
		[]string{"verdict"},
	)

	bookingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "patientapp_bookings_total",
			Help: "Total number of confirmed appointment bookings",
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "patientapp_active_sessions",
			Help: "Number of stored sessions",
		},
	)

	// Reasoner metrics
	reasonerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patientapp_reasoner_requests_total",
			Help: "Total number of reasoner completion requests",
		},
		[]string{"provider", "outcome"},
	)

	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patientapp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patientapp_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			turnsTotal,
			stageDuration,
			stageFallbacksTotal,
			securityVerdictsTotal,
			bookingsTotal,
			activeSessions,
			reasonerRequestsTotal,
			httpRequestsTotal,
			httpRequestDuration,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records a processed turn with its outcome
func RecordTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

// RecordStageDuration records a stage evaluation duration
func RecordStageDuration(stage string, duration time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStageFallback records a rule fallback for a stage
func RecordStageFallback(stage string) {
	stageFallbacksTotal.WithLabelValues(stage).Inc()
}

// RecordSecurityVerdict records a security screen verdict
func RecordSecurityVerdict(verdict string) {
	securityVerdictsTotal.WithLabelValues(verdict).Inc()
}

// RecordBooking records a confirmed booking
func RecordBooking() {
	bookingsTotal.Inc()
}

// SetActiveSessions sets the stored session gauge
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// RecordReasonerRequest records a reasoner completion attempt
func RecordReasonerRequest(provider, outcome string) {
	reasonerRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
