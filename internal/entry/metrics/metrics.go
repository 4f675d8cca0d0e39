package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the entry lifecycle.
type Metrics struct {
	Transitions    *prometheus.CounterVec
	AutoReconciled prometheus.Counter
	GateDenials    *prometheus.CounterVec
}

// New creates and registers all lifecycle metrics.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridata_lifecycle_transitions_total",
			Help: "Total number of lifecycle transitions, by resulting status",
		}, []string{"to_status"}),
		AutoReconciled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridata_auto_reconciled_total",
			Help: "Total number of instances reconciled directly on second-entry submission",
		}),
		GateDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridata_entry_gate_denials_total",
			Help: "Total number of entry authorization denials, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncrementTransition(toStatus string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(toStatus).Inc()
}

func (m *Metrics) IncrementAutoReconciled() {
	if m == nil {
		return
	}
	m.AutoReconciled.Inc()
}

func (m *Metrics) IncrementGateDenial(reason string) {
	if m == nil {
		return
	}
	m.GateDenials.WithLabelValues(reason).Inc()
}
