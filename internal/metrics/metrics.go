// Package metrics holds the Prometheus instruments for the evaluation
// pipeline. Constructed against an explicit registry so tests get isolated
// instances instead of duplicate-registration panics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the pipeline's instruments.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	DedupHits        *prometheus.CounterVec
	AISkipped        prometheus.Counter
	FailsafeFired    prometheus.Counter
	EvaluateDuration prometheus.Histogram
}

// New registers the instruments on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the instruments on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "decisions_total",
			Help:      "Evaluation outcomes by decision.",
		}, []string{"decision"}),
		DedupHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "dedup_hits_total",
			Help:      "Duplicate detections by check type.",
		}, []string{"type"}),
		AISkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "ai_skipped_total",
			Help:      "Enrichment calls skipped due to timeout, fault, or open circuit.",
		}),
		FailsafeFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "failsafe_total",
			Help:      "Failsafe envelope activations for CRITICAL events.",
		}),
		EvaluateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "triage",
			Name:      "evaluate_duration_seconds",
			Help:      "Wall time of one Evaluate call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.Decisions, m.DedupHits, m.AISkipped, m.FailsafeFired, m.EvaluateDuration)
	return m
}
