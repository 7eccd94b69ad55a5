// Package observability provides metrics and tracing for the post lifecycle.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostTransitions counts committed lifecycle transitions.
	PostTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postflow_post_transitions_total",
		Help: "Total number of committed post status transitions",
	}, []string{"action", "from", "to"})

	// LifecycleRejections counts lifecycle operations refused by a guard, by error kind.
	LifecycleRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postflow_lifecycle_rejections_total",
		Help: "Total number of lifecycle operations rejected, by action and error kind",
	}, []string{"action", "kind"})

	// ClassifierLatency records classifier round-trip latency by implementation.
	ClassifierLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postflow_classifier_latency_seconds",
		Help:    "Content classifier latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"classifier"})

	// ClassifierOutcomes counts classifier verdicts and failures.
	ClassifierOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postflow_classifier_outcomes_total",
		Help: "Content classifier outcomes (approved, rejected, unavailable, cache_hit)",
	}, []string{"classifier", "outcome"})

	// DatabaseQueryLatency records store latency by operation.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postflow_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// RecordTransition increments the transition counter.
func RecordTransition(action, from, to string) {
	PostTransitions.WithLabelValues(action, from, to).Inc()
}

// RecordRejection increments the rejection counter.
func RecordRejection(action, kind string) {
	LifecycleRejections.WithLabelValues(action, kind).Inc()
}

// TrackClassifier returns a function that records classifier latency when called (e.g. defer).
func TrackClassifier(name string) func() {
	start := time.Now()
	return func() {
		ClassifierLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// RecordClassifierOutcome increments the classifier outcome counter.
func RecordClassifierOutcome(name, outcome string) {
	ClassifierOutcomes.WithLabelValues(name, outcome).Inc()
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
