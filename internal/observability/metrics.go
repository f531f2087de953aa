package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// precompute pipeline.
type Metrics struct {
	AreasProcessed  prometheus.Counter
	AreasFailed     prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Streamline tracing metrics.
	SeedsTraced          prometheus.Counter
	SeedsSkipped         prometheus.Counter
	StreamlinesKept      prometheus.Counter
	StreamlinesDiscarded prometheus.Counter
	FootprintsSkipped    prometheus.Counter
	StreamlinePoints     prometheus.Histogram
	AreaDuration         prometheus.Histogram

	// Interpolation metrics.
	GridsComputed prometheus.Counter
	InterpQueries prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AreasProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cityflow",
			Name:      "areas_processed_total",
			Help:      "Total areas processed end to end.",
		}),
		AreasFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cityflow",
			Name:      "areas_failed_total",
			Help:      "Total areas skipped because their documents were malformed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cityflow",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		SeedsTraced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cityflow",
			Name:      "seeds_traced_total",
			Help:      "Total seeds handed to the streamline tracer.",
		}),
		SeedsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cityflow",
			Name:      "seeds_skipped_total",
			Help:      "Total seed grid cells skipped for starting inside an obstacle.",
		}),
		StreamlinesKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cityflow",
			Name:      "streamlines_kept_total",
			Help:      "Traced streamlines meeting the minimum length threshold.",
		}),
		StreamlinesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cityflow",
			Name:      "streamlines_discarded_total",
			Help:      "Traced streamlines discarded for falling under the minimum length.",
		}),
		FootprintsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cityflow",
			Name:      "footprints_skipped_total",
			Help:      "Degenerate building footprints dropped at obstacle index build.",
		}),
		StreamlinePoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cityflow",
			Name:      "streamline_points",
			Help:      "Point count per kept streamline.",
			Buckets:   []float64{15, 25, 50, 75, 100, 150, 201},
		}),
		AreaDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cityflow",
			Name:      "area_processing_duration_seconds",
			Help:      "Duration of a complete per-area precompute.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		GridsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cityflow",
			Name:      "grids_computed_total",
			Help:      "Interpolation grids computed, one per station document.",
		}),
		InterpQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cityflow",
			Name:      "interp_queries_total",
			Help:      "Point interpolation queries answered, grid cells included.",
		}),
	}

	prometheus.MustRegister(
		m.AreasProcessed,
		m.AreasFailed,
		m.PipelineRunning,
		m.SeedsTraced,
		m.SeedsSkipped,
		m.StreamlinesKept,
		m.StreamlinesDiscarded,
		m.FootprintsSkipped,
		m.StreamlinePoints,
		m.AreaDuration,
		m.GridsComputed,
		m.InterpQueries,
	)

	return m
}

// NewMetricsForTesting creates Metrics with no registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		AreasProcessed:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cityflow", Name: "areas_processed_total"}),
		AreasFailed:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cityflow", Name: "areas_failed_total"}),
		PipelineRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "cityflow", Name: "pipeline_running"}),
		SeedsTraced:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cityflow", Name: "seeds_traced_total"}),
		SeedsSkipped:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cityflow", Name: "seeds_skipped_total"}),
		StreamlinesKept:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cityflow", Name: "streamlines_kept_total"}),
		StreamlinesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cityflow", Name: "streamlines_discarded_total"}),
		FootprintsSkipped:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cityflow", Name: "footprints_skipped_total"}),
		StreamlinePoints:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "cityflow", Name: "streamline_points"}),
		AreaDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "cityflow", Name: "area_processing_duration_seconds"}),
		GridsComputed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cityflow", Name: "grids_computed_total"}),
		InterpQueries:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cityflow", Name: "interp_queries_total"}),
	}
}
