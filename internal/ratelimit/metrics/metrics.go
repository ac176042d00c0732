package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Limiter decisions by outcome ("allowed", "rejected", "error")
	Decisions *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "verifyreceipt_ratelimit_decisions_total",
			Help: "Total per-IP rate limit decisions by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementAllowed() {
	m.inc("allowed")
}

func (m *Metrics) IncrementRejected() {
	m.inc("rejected")
}

func (m *Metrics) IncrementErrors() {
	m.inc("error")
}

func (m *Metrics) inc(outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome).Inc()
	}
}
