package oracle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Batch outcomes recorded in Metrics.Batches.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
)

// Metrics counts oracle activity. A nil *Metrics records nothing.
type Metrics struct {
	Batches *prometheus.CounterVec
	Retries prometheus.Counter
	Coerced prometheus.Counter
	Missing prometheus.Counter
}

// NewMetrics registers the oracle counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookmerge",
			Subsystem: "oracle",
			Name:      "batches_total",
			Help:      "Oracle batches by outcome.",
		}, []string{"outcome"}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bookmerge",
			Subsystem: "oracle",
			Name:      "retries_total",
			Help:      "Completion attempts retried after a transport failure.",
		}),
		Coerced: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bookmerge",
			Subsystem: "oracle",
			Name:      "coerced_labels_total",
			Help:      "Labels outside the vocabulary replaced by the default label.",
		}),
		Missing: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bookmerge",
			Subsystem: "oracle",
			Name:      "missing_labels_total",
			Help:      "Records the oracle answered nothing for.",
		}),
	}
}

func (m *Metrics) batch(outcome string) {
	if m != nil {
		m.Batches.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) retry() {
	if m != nil {
		m.Retries.Inc()
	}
}

func (m *Metrics) coerced(n int) {
	if m != nil && n > 0 {
		m.Coerced.Add(float64(n))
	}
}

func (m *Metrics) missing(n int) {
	if m != nil && n > 0 {
		m.Missing.Add(float64(n))
	}
}
