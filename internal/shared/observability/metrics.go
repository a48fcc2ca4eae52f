// # internal/shared/observability/metrics.go
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	BundleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pybundle_bundle_seconds",
		Help:    "Wall time of one full bundling pass.",
		Buckets: prometheus.DefBuckets,
	})

	BundlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pybundle_bundles_total",
		Help: "Total bundling passes, by outcome.",
	}, []string{"outcome"})

	ModulesBundled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pybundle_modules_bundled",
		Help: "Modules inlined into the most recent bundle.",
	})

	ItemsEmitted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pybundle_items_emitted",
		Help: "Top-level statements emitted by the most recent bundle.",
	})

	SymbolRenames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pybundle_symbol_renames",
		Help: "Conflicting symbols renamed in the most recent bundle.",
	})

	CycleGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pybundle_cycle_groups",
		Help: "Circular-dependency groups found in the most recent pass.",
	})

	OutputBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pybundle_output_bytes",
		Help: "Size of the most recent bundle output.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pybundle_watcher_events_total",
		Help: "Total file change batches received in watch mode.",
	})
)
