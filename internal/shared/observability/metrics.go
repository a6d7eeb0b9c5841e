package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sizeBuckets = prometheus.ExponentialBuckets(1, 2, 14)

// Metrics definitions
var (
	RegionsAnalyzedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dagestimator_regions_analyzed_total",
		Help: "Total number of regions analyzed, by region kind.",
	}, []string{"kind"})

	RegionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dagestimator_region_failures_total",
		Help: "Total number of regions whose analysis aborted on a contract violation.",
	}, []string{"kind"})

	DAGNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dagestimator_dag_nodes",
		Help:    "Number of nodes in a region's instruction DAG.",
		Buckets: sizeBuckets,
	})

	DependencyGraphNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dagestimator_dependency_graph_nodes",
		Help:    "Number of nodes in a region's reduced dependency graph.",
		Buckets: sizeBuckets,
	})

	RegionWidth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dagestimator_region_width",
		Help:    "Width of analyzed regions.",
		Buckets: sizeBuckets,
	})

	RegionDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dagestimator_region_depth",
		Help:    "Depth of analyzed regions.",
		Buckets: sizeBuckets,
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dagestimator_analysis_seconds",
		Help:    "Time spent on high-level analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dagestimator_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatchRunsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dagestimator_watch_runs_throttled_total",
		Help: "Total number of watch-triggered runs delayed by the rate limiter.",
	})
)
