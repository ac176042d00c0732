package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementVerification("reference", "cbe", "SUCCESS", "local")
	m.IncrementCache(true)
	m.IncrementCache(false)
	m.IncrementCache(false)
	m.IncrementFallback("cbe", "upstream_not_found")
	m.IncrementLocalExtraction("cbe", "success")
	m.ObserveUpstreamLatency("cbe", 150*time.Millisecond)
	m.SetCircuitOpen("cbe_receipt_pdf", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("reference", "cbe", "SUCCESS", "local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("cbe", "upstream_not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitOpen.WithLabelValues("cbe_receipt_pdf")))

	m.SetCircuitOpen("cbe_receipt_pdf", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CircuitOpen.WithLabelValues("cbe_receipt_pdf")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementVerification("image", "", "PENDING", "upstream")
		m.IncrementCache(true)
		m.SetCircuitOpen("x", true)
		m.ObserveUpstreamLatency("x", time.Second)
	})
}
