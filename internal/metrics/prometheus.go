package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationAttempts counts streamed attempts made by the adaptive engine.
	// Labels: outcome (completed, truncated, empty, timeout, error)
	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staffeval",
			Subsystem: "adaptive",
			Name:      "attempts_total",
			Help:      "Streamed generation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// GenerationResults counts adaptive generations by final status.
	// Labels: status (completed, truncated, failed)
	GenerationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staffeval",
			Subsystem: "adaptive",
			Name:      "results_total",
			Help:      "Adaptive generations by final status",
		},
		[]string{"status"},
	)

	// StepDuration tracks wall time of test steps.
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "staffeval",
			Subsystem: "runner",
			Name:      "step_duration_seconds",
			Help:      "Duration of test steps in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	// RunsActive is the number of test runs in flight.
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "staffeval",
			Subsystem: "runner",
			Name:      "runs_active",
			Help:      "Test runs currently in flight",
		},
	)

	// SynthesisOutcomes counts deep analysis runs by source.
	// Labels: source (none, single_variant, synthesis, longest_variant_fallback)
	SynthesisOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staffeval",
			Subsystem: "synthesis",
			Name:      "runs_total",
			Help:      "Deep analysis runs by final text source",
		},
		[]string{"source"},
	)

	// ArbiterFallbacks counts evaluator models that failed during the arbiter
	// phase.
	ArbiterFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "staffeval",
			Subsystem: "verdict",
			Name:      "arbiter_fallbacks_total",
			Help:      "Evaluator models that failed and were skipped",
		},
	)

	// VerdictDecisions counts automatic decisions.
	// Labels: decision (hire, reject, retest)
	VerdictDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staffeval",
			Subsystem: "verdict",
			Name:      "decisions_total",
			Help:      "Automatic verdict decisions",
		},
		[]string{"decision"},
	)

	// CollaboratorFailures counts best-effort writes that failed.
	// Labels: collaborator (memory, audit)
	CollaboratorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staffeval",
			Subsystem: "verdict",
			Name:      "collaborator_failures_total",
			Help:      "Best-effort collaborator writes that failed",
		},
		[]string{"collaborator"},
	)
)
