package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchRuns counts matcher runs by mode (nearest|radius) and outcome.
	MatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "point_matcher_runs_total",
		Help: "Number of matcher runs",
	}, []string{"mode", "status"})

	PointsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "point_matcher_points_loaded_total",
		Help: "Number of coordinates loaded from sources",
	}, []string{"set"})

	RowsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "point_matcher_rows_skipped_total",
		Help: "Number of source rows skipped because they could not be parsed",
	}, []string{"set"})

	DistanceEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "point_matcher_distance_evaluations_total",
		Help: "Number of distance computations performed by the matcher",
	})

	MatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "point_matcher_match_duration_seconds",
		Help:    "Time spent matching one source set against one target set",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "point_matcher_active_jobs",
		Help: "Number of upload jobs currently running",
	})
)
