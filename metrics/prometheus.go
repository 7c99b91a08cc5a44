package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
	gauges    *prometheus.GaugeVec
}

// NewPrometheusRecorder registers the escrow collectors on reg. A nil reg
// uses the default registerer. Collectors already registered by an earlier
// recorder are shared.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "events_total",
			Help:      "escrow event counters",
		},
		[]string{"type", "instruction", "outcome"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "escrow",
			Name:      "latency_seconds",
			Help:      "escrow operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "instruction"},
	)

	gauges := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "escrow",
			Name:      "state",
			Help:      "escrow program state values",
		},
		[]string{"name"},
	)

	return &PrometheusRecorder{
		counters:  register(reg, counters),
		histogram: register(reg, histogram),
		gauges:    register(reg, gauges),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":        name,
		"instruction": labels["instruction"],
		"outcome":     labels["outcome"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation":   name,
		"instruction": labels["instruction"],
	}).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetGauge(name string, value float64, _ map[string]string) {
	p.gauges.With(prometheus.Labels{"name": name}).Set(value)
}
