// Package metrics registers the prometheus counters/histograms of the
// nested-set core. The Move Engine records move counts, move duration
// and scope-lock wait; RebuildsTotal and ValidateFailuresTotal are
// registered, but setbuilder does not increment them.
// Registration happens against a caller-supplied
// *prometheus.Registry; nstree never starts its own HTTP exporter.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the counters/histograms registered by New.
type Metrics struct {
	MovesTotal            *prometheus.CounterVec
	MoveDuration          prometheus.Histogram
	RebuildsTotal         prometheus.Counter
	ValidateFailuresTotal prometheus.Counter
	LockWaitSeconds       prometheus.Histogram
}

// New constructs and registers a Metrics bundle. Passing a nil
// registry returns a Metrics bundle backed by a private, unregistered
// registry, useful for tests that don't care about exposition.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		MovesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nstree_moves_total",
			Help: "Count of Move Engine invocations by result.",
		}, []string{"result"}),
		MoveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "nstree_move_duration_seconds",
			Help: "Duration of Move Engine transactions.",
		}),
		RebuildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nstree_rebuilds_total",
			Help: "Count of full-scope bounds rebuilds.",
		}),
		ValidateFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nstree_validate_failures_total",
			Help: "Count of isValidNestedSet checks that returned false.",
		}),
		LockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "nstree_lock_wait_seconds",
			Help: "Time spent waiting on the in-process scope lock.",
		}),
	}

	reg.MustRegister(m.MovesTotal, m.MoveDuration, m.RebuildsTotal, m.ValidateFailuresTotal, m.LockWaitSeconds)
	return m
}
