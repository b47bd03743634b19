// Package metrics provides Prometheus observability metrics for the
// auto-scheduler engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the custom prometheus registry for the application
var Registry = prometheus.NewRegistry()

// factory registers metrics to our custom Registry directly
var factory = promauto.With(Registry)

// EventsPlaced counts events placed per terminal outcome
// (Placed, PlacedViaBackup, PlacedViaBump).
var EventsPlaced = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "events_placed_total",
	Help:      "Events placed by the auto-scheduler, by outcome",
}, []string{"outcome"})

// EventsUnsatisfied counts events the run could not place, by reason.
// These are business-level outcomes, not engine failures.
var EventsUnsatisfied = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "events_unsatisfied_total",
	Help:      "Events left unsatisfied by a run, by reason",
}, []string{"reason"})

// BumpsPerformed counts committed displacement chains.
var BumpsPerformed = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "bumps_performed_total",
	Help:      "Committed bump chains across all runs",
})

// BumpDepth observes the depth of committed bump chains.
var BumpDepth = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "scheduler",
	Name:      "bump_depth",
	Help:      "Depth of committed bump chains",
	Buckets:   []float64{1, 2, 3, 4, 5},
})

// ScorerFallbacks counts ranking calls where the external scorer was
// configured but its result was discarded for the deterministic order.
var ScorerFallbacks = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "scorer_fallbacks_total",
	Help:      "Ranking calls that fell back to the deterministic order",
})

// BackupSubstitutions counts rotation resolutions served by the backup
// tier. A climbing value is a rotation data-quality signal.
var BackupSubstitutions = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "rotation_backup_substitutions_total",
	Help:      "Rotation resolutions that used the backup employee",
})

// RunsTotal counts scheduler runs by final status (ok, failed, locked).
var RunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "runs_total",
	Help:      "Scheduler runs by final status",
}, []string{"status"})

// RunDuration observes wall-clock run duration in seconds.
var RunDuration = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "scheduler",
	Name:      "run_duration_seconds",
	Help:      "Scheduler run duration in seconds",
	Buckets:   prometheus.DefBuckets,
})

// Handler returns an http.Handler serving the registry, for callers that
// want to expose /metrics during long-lived runs.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
