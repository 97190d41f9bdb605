package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics holds Prometheus metrics for signal processing.
type PipelineMetrics struct {
	SignalsProcessed   *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	FusedConfidence    prometheus.Histogram
	Responses          *prometheus.CounterVec
	ActionsDispatched  *prometheus.CounterVec
	ConsentDenials     *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers pipeline metrics on the given registry.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		SignalsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_processed_total",
			Help:      "Total number of signal requests processed, by result.",
		}, []string{"result"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "signal_processing_duration_seconds",
			Help:      "Duration of signal processing in seconds, including dispatch.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		FusedConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fused_confidence",
			Help:      "Overall confidence of fused emotions.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total number of response gate decisions, by reason.",
		}, []string{"reason"}),
		ActionsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_dispatched_total",
			Help:      "Total number of device directives, by action type and execution mode.",
		}, []string{"action_type", "mode"}),
		ConsentDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consent_denials_total",
			Help:      "Total number of channels rejected for missing consent.",
		}, []string{"channel"}),
	}

	reg.MustRegister(m.SignalsProcessed, m.ProcessingDuration, m.FusedConfidence, m.Responses, m.ActionsDispatched, m.ConsentDenials)
	return m
}
