package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the onboarding engine.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsResumed  prometheus.Counter
	StepsSubmitted   *prometheus.CounterVec
	StepTransitions  prometheus.Counter
	SchemaCompiles   prometheus.Counter
	DocumentsUploads prometheus.Counter
	FlowsCompleted   prometheus.Counter
	CompileDuration  prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboard_sessions_started_total",
			Help: "Total number of onboarding sessions started",
		}),
		SessionsResumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboard_sessions_resumed_total",
			Help: "Total number of onboarding sessions resumed from a snapshot",
		}),
		StepsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_steps_submitted_total",
			Help: "Step submissions partitioned by outcome",
		}, []string{"outcome"}),
		StepTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboard_step_transitions_total",
			Help: "Total number of navigation transitions",
		}),
		SchemaCompiles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboard_schema_compiles_total",
			Help: "Total number of dynamic schema compilations",
		}),
		DocumentsUploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboard_document_uploads_total",
			Help: "Total number of document drafts uploaded",
		}),
		FlowsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboard_flows_completed_total",
			Help: "Total number of onboarding flows completed",
		}),
		CompileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "onboard_schema_compile_duration_seconds",
			Help:    "Latency of dynamic schema compilation",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordStepSubmission counts one submission with its outcome label.
func (m *Metrics) RecordStepSubmission(outcome string) {
	m.StepsSubmitted.WithLabelValues(outcome).Inc()
}
