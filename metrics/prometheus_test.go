package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	labels := map[string]string{"instruction": "verify_payment", "outcome": Outcome(nil)}
	rec.IncCounter(EventInstruction, labels)
	rec.IncCounter(EventInstruction, labels)
	rec.ObserveLatency(EventInstruction, 5*time.Millisecond, labels)
	rec.SetGauge(GaugeTotalProcessed, 5_000_000, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.counters.WithLabelValues(EventInstruction, "verify_payment", "ok")))
	assert.Equal(t, 5_000_000.0, testutil.ToFloat64(rec.gauges.WithLabelValues(GaugeTotalProcessed)))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.histogram))
}

func TestPrometheusRecorderSharesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewPrometheusRecorder(reg)
	second := NewPrometheusRecorder(reg)

	labels := map[string]string{"instruction": "create_payment_request", "outcome": "ok"}
	first.IncCounter(EventOperation, labels)
	second.IncCounter(EventOperation, labels)
	second.SetGauge(GaugeTotalProcessed, 7, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.counters.WithLabelValues(EventOperation, "create_payment_request", "ok")))
	assert.Equal(t, 7.0, testutil.ToFloat64(first.gauges.WithLabelValues(GaugeTotalProcessed)))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}
