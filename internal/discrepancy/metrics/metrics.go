package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for discrepancy management.
type Metrics struct {
	Opened   prometheus.Counter
	Resolved *prometheus.CounterVec
}

// New creates and registers all discrepancy metrics.
func New() *Metrics {
	return &Metrics{
		Opened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridata_discrepancies_opened_total",
			Help: "Total number of discrepancies opened by comparison runs",
		}),
		Resolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridata_discrepancies_resolved_total",
			Help: "Total number of discrepancies resolved, by strategy",
		}, []string{"strategy"}),
	}
}

func (m *Metrics) IncrementOpened() {
	if m == nil {
		return
	}
	m.Opened.Inc()
}

func (m *Metrics) IncrementResolved(strategy string) {
	if m == nil {
		return
	}
	m.Resolved.WithLabelValues(strategy).Inc()
}
