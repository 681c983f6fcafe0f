package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	PagesFetched       *prometheus.CounterVec
	PagesFailed        *prometheus.CounterVec
	RequestRetries     *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	CircuitTransitions *prometheus.CounterVec
	ListingsEmitted    *prometheus.CounterVec
	RecordsDropped     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		PagesFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "The total number of result pages fetched successfully",
		}, []string{"source"}),
		PagesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_pages_failed_total",
			Help: "The total number of result pages given up on",
		}, []string{"source", "reason"}),
		RequestRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_request_retries_total",
			Help: "The total number of request retry attempts",
		}, []string{"source"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "Duration of outbound requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source", "endpoint"}),
		CircuitTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_circuit_transitions_total",
			Help: "Circuit breaker state transitions",
		}, []string{"key", "state"}),
		ListingsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_listings_emitted_total",
			Help: "Canonical listings emitted after normalization",
		}, []string{"source"}),
		RecordsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_records_dropped_total",
			Help: "Raw records dropped during normalization",
		}, []string{"source", "reason"}),
	}
}

// The increment helpers are nil-safe so components can run without a
// metrics sink in tests.

func (m *Metrics) IncPagesFetched(source string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(source).Inc()
}

func (m *Metrics) IncPagesFailed(source, reason string) {
	if m == nil {
		return
	}
	m.PagesFailed.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) IncRequestRetries(source string) {
	if m == nil {
		return
	}
	m.RequestRetries.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveRequestDuration(source, endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(source, endpoint).Observe(seconds)
}

func (m *Metrics) IncCircuitTransition(key, state string) {
	if m == nil {
		return
	}
	m.CircuitTransitions.WithLabelValues(key, state).Inc()
}

func (m *Metrics) IncListingsEmitted(source string) {
	if m == nil {
		return
	}
	m.ListingsEmitted.WithLabelValues(source).Inc()
}

func (m *Metrics) IncRecordsDropped(source, reason string) {
	if m == nil {
		return
	}
	m.RecordsDropped.WithLabelValues(source, reason).Inc()
}
