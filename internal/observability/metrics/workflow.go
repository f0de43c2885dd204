package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics implements the workflow package's Metrics contract.
type WorkflowMetrics struct {
	nodeDuration    *prometheus.HistogramVec
	evidenceChunks  prometheus.Histogram
	visionDecisions *prometheus.CounterVec
	degradedTotal   *prometheus.CounterVec
}

func NewWorkflowMetrics(registry *prometheus.Registry, service string) *WorkflowMetrics {
	nodeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paperstand",
			Subsystem: "workflow",
			Name:      "node_duration_seconds",
			Help:      "Execution duration per workflow node.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"node"},
	)
	evidenceChunks := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "paperstand",
			Subsystem: "workflow",
			Name:      "evidence_chunks",
			Help:      "Merged evidence chunks per query run.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	visionDecisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperstand",
			Subsystem: "workflow",
			Name:      "vision_decisions_total",
			Help:      "Vision routing decisions by deciding tier.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"tier", "decision"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperstand",
			Subsystem: "workflow",
			Name:      "degraded_total",
			Help:      "Collaborator failures recovered into degraded results.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"component"},
	)

	registry.MustRegister(nodeDuration, evidenceChunks, visionDecisions, degradedTotal)

	return &WorkflowMetrics{
		nodeDuration:    nodeDuration,
		evidenceChunks:  evidenceChunks,
		visionDecisions: visionDecisions,
		degradedTotal:   degradedTotal,
	}
}

func (m *WorkflowMetrics) ObserveNode(node string, duration time.Duration) {
	m.nodeDuration.WithLabelValues(node).Observe(duration.Seconds())
}

func (m *WorkflowMetrics) ObserveEvidence(count int) {
	m.evidenceChunks.Observe(float64(count))
}

func (m *WorkflowMetrics) RecordVisionDecision(tier, decision string) {
	m.visionDecisions.WithLabelValues(tier, decision).Inc()
}

func (m *WorkflowMetrics) RecordDegraded(component string) {
	m.degradedTotal.WithLabelValues(component).Inc()
}
