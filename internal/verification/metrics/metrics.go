package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Final outcomes by request kind, provider, status and source
	Verifications *prometheus.CounterVec

	// Cache lookups by result ("hit" or "miss")
	CacheLookups *prometheus.CounterVec

	// Local fallback decisions by provider and reason
	Fallbacks *prometheus.CounterVec

	// Local extraction attempts by provider and outcome
	LocalExtractions *prometheus.CounterVec

	// Upstream latency by provider
	UpstreamLatency *prometheus.HistogramVec

	// 1 while an extractor's circuit is open, 0 otherwise
	CircuitOpen *prometheus.GaugeVec
}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifyreceipt_verifications_total",
			Help: "Total verification results by request kind, provider, status and source",
		}, []string{"kind", "provider", "status", "source"}), // kind: "reference", "image"

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifyreceipt_cache_lookups_total",
			Help: "Total result cache lookups by outcome",
		}, []string{"result"}),

		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifyreceipt_local_fallbacks_total",
			Help: "Total decisions to attempt a local extractor, by reason",
		}, []string{"provider", "reason"}),

		LocalExtractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifyreceipt_local_extractions_total",
			Help: "Total local extractor attempts by outcome",
		}, []string{"provider", "outcome"}),

		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verifyreceipt_upstream_duration_seconds",
			Help:    "Duration of upstream verification calls by provider",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),

		CircuitOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "verifyreceipt_circuit_open",
			Help: "Whether a local extractor's circuit breaker is open",
		}, []string{"breaker"}),
	}
}

// IncrementVerification records a final verification outcome.
func (m *Metrics) IncrementVerification(kind, provider, status, source string) {
	if m != nil {
		m.Verifications.WithLabelValues(kind, provider, status, source).Inc()
	}
}

// IncrementCache records a cache hit or miss.
func (m *Metrics) IncrementCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// IncrementFallback records a fallback decision.
func (m *Metrics) IncrementFallback(provider, reason string) {
	if m != nil {
		m.Fallbacks.WithLabelValues(provider, reason).Inc()
	}
}

// IncrementLocalExtraction records a local extractor outcome.
func (m *Metrics) IncrementLocalExtraction(provider, outcome string) {
	if m != nil {
		m.LocalExtractions.WithLabelValues(provider, outcome).Inc()
	}
}

// ObserveUpstreamLatency records the duration of one upstream call.
func (m *Metrics) ObserveUpstreamLatency(provider string, d time.Duration) {
	if m != nil {
		m.UpstreamLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// SetCircuitOpen records a breaker state change.
func (m *Metrics) SetCircuitOpen(breaker string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitOpen.WithLabelValues(breaker).Set(v)
}
