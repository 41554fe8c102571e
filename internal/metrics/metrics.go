// Package metrics defines the Prometheus collectors shared across the app.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccountDeletions counts cascade invocations by outcome (ok|failed).
	AccountDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_account_deletions_total",
		Help: "Cascading account deletions by outcome.",
	}, []string{"outcome"})

	// DocumentsPurged counts documents removed during cascading deletion.
	DocumentsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_documents_purged_total",
		Help: "Documents removed by the cascading deletion orchestrator.",
	})

	// DualWriteFailures counts denormalized writes/deletes that failed on
	// one or both locations.
	DualWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_dual_write_failures_total",
		Help: "Failed dual-location record writes or deletes.",
	})

	// ReconcileRepairs counts reconciliation actions (restored|removed).
	ReconcileRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_reconcile_repairs_total",
		Help: "Dual-location inconsistencies repaired by the sweeper.",
	}, []string{"action"})
)
