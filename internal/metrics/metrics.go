// Package metrics holds the pipeline's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"catalog_sync/pkg/retryx"
)

//nolint:gochecknoglobals
var (
	// UnitOutcomes counts terminal per-id outcomes, labeled by outcome and
	// skip/error reason.
	UnitOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog_sync",
		Name:      "unit_outcomes_total",
		Help:      "Terminal reconciliation outcomes per supplier id.",
	}, []string{"outcome", "reason"})

	// RetryAttempts counts outbound request attempts beyond the first one,
	// labeled by upstream.
	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog_sync",
		Name:      "retry_attempts_total",
		Help:      "Outbound request retries per upstream.",
	}, []string{"upstream"})

	// JobsFinished counts reconciliation passes by terminal job status.
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog_sync",
		Name:      "jobs_finished_total",
		Help:      "Reconciliation passes by terminal status.",
	}, []string{"status"})
)

// ObserveOutcome records one terminal unit result.
func ObserveOutcome(outcome, reason string) {
	UnitOutcomes.WithLabelValues(outcome, reason).Inc()
}

// RetryObserver adapts a counter to the request executor's observer hook.
func RetryObserver(upstream string) retryx.Observer {
	counter := RetryAttempts.WithLabelValues(upstream)

	return func(int, time.Duration, error) {
		counter.Inc()
	}
}
