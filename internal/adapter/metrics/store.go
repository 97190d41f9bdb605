package metrics

import "github.com/prometheus/client_golang/prometheus"

// StoreMetrics holds Prometheus metrics for the shared conversation store.
type StoreMetrics struct {
	OperationDuration *prometheus.HistogramVec
	Conflicts         prometheus.Counter
	OrphansDeleted    prometheus.Counter
}

// NewStoreMetrics creates and registers store metrics on the given registry.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation_store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of conversation store operations in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"operation", "result"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation_store",
			Name:      "conflicts_total",
			Help:      "Total number of optimistic update conflicts that forced a retry.",
		}),
		OrphansDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation_store",
			Name:      "orphans_deleted_total",
			Help:      "Total number of conversations deleted because their user no longer consents.",
		}),
	}

	reg.MustRegister(m.OperationDuration, m.Conflicts, m.OrphansDeleted)
	return m
}
