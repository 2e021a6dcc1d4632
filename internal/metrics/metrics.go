// Package metrics registers the Prometheus metrics owned by the retrieval
// engine. A single instance is created per engine and registered against
// an injected prometheus.Registerer so tests can use a fresh registry
// without polluting the default one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Modes partition search metrics by how the query was served.
const (
	// ModeIndex marks queries served by the clustered ANN index.
	ModeIndex = "index"

	// ModeScan marks queries served by the exact linear scan fallback.
	ModeScan = "scan"
)

// Metrics holds all Prometheus metrics owned by the retrieval engine.
type Metrics struct {
	// SearchesTotal counts completed similarity searches, partitioned by
	// serving mode ("index" or "scan").
	SearchesTotal *prometheus.CounterVec

	// SearchDuration records wall-clock latency of similarity searches,
	// partitioned by serving mode.
	SearchDuration *prometheus.HistogramVec

	// SegmentsCreated counts createSegment calls that stored a new
	// segment; deduplicated calls are counted separately.
	SegmentsCreated *prometheus.CounterVec

	// EmbeddingsApplied counts embedding vectors committed by batch
	// updates.
	EmbeddingsApplied prometheus.Counter

	// RebuildsTotal counts index rebuilds, partitioned by outcome
	// ("ok", "skipped", "error", "canceled").
	RebuildsTotal *prometheus.CounterVec

	// RebuildDuration records wall-clock duration of index rebuilds.
	RebuildDuration prometheus.Histogram
}

// New registers all engine metrics against reg and returns the populated
// Metrics. Pass prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of similarity searches, partitioned by serving mode.",
		}, []string{"mode"}),

		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recall",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Latency of similarity searches, partitioned by serving mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),

		SegmentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "store",
			Name:      "segments_created_total",
			Help:      "Total createSegment calls, partitioned by outcome (created or deduplicated).",
		}, []string{"outcome"}),

		EmbeddingsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "store",
			Name:      "embeddings_applied_total",
			Help:      "Total embedding vectors committed by batch updates.",
		}),

		RebuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "index",
			Name:      "rebuilds_total",
			Help:      "Total index rebuilds, partitioned by outcome.",
		}, []string{"outcome"}),

		RebuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "recall",
			Subsystem: "index",
			Name:      "rebuild_duration_seconds",
			Help:      "Wall-clock duration of index rebuilds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}
