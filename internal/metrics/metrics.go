// Package metrics exposes Prometheus metrics for the fusion pipeline. Label
// values are drawn from bounded sets (stage, outcome, failure code, action)
// to keep cardinality fixed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded label values.
const (
	OutcomeRecommended = "recommended"
	OutcomeNoTrade     = "no_trade"
	OutcomeFailed      = "failed"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictfunk_cycles_total",
			Help: "Analysis cycles completed, by outcome",
		},
		[]string{"outcome"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "predictfunk_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"stage"},
	)

	consensusFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictfunk_consensus_failures_total",
			Help: "Typed consensus-stage failures, by failure code",
		},
		[]string{"code"},
	)

	recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictfunk_recommendations_total",
			Help: "Trade recommendations produced, by action",
		},
		[]string{"action"},
	)

	rejectedSignals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "predictfunk_rejected_signals_total",
			Help: "Agent signals rejected during input validation",
		},
	)

	extremeDivergence = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "predictfunk_extreme_divergence_total",
			Help: "Cycles where the extreme-divergence confidence halving fired",
		},
	)

	auditWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictfunk_audit_writes_total",
			Help: "Audit record persistence attempts, by result",
		},
		[]string{"result"},
	)
)

// RecordCycle counts a completed cycle by outcome.
func RecordCycle(outcome string) {
	cyclesTotal.WithLabelValues(outcome).Inc()
}

// RecordStageDuration observes one stage's wall time in seconds.
func RecordStageDuration(stage string, seconds float64) {
	stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordConsensusFailure counts a typed consensus failure.
func RecordConsensusFailure(code string) {
	consensusFailures.WithLabelValues(code).Inc()
}

// RecordRecommendation counts a recommendation by action.
func RecordRecommendation(action string) {
	recommendations.WithLabelValues(action).Inc()
}

// RecordRejectedSignals counts signals dropped by validation.
func RecordRejectedSignals(n int) {
	rejectedSignals.Add(float64(n))
}

// RecordExtremeDivergence counts a divergence-halving event.
func RecordExtremeDivergence() {
	extremeDivergence.Inc()
}

// RecordAuditWrite counts an audit persistence attempt.
func RecordAuditWrite(success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	auditWrites.WithLabelValues(result).Inc()
}
