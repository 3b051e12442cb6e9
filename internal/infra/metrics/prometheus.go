package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slidex_jobs_processed_total",
		Help: "Total number of extraction jobs, by terminal status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slidex_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	CandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidex_candidates_total",
		Help: "Raw candidate frames emitted by scene detection across all jobs",
	})

	FramesCollapsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidex_frames_collapsed_total",
		Help: "Candidate frames discarded as near-duplicates across all jobs",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slidex_active_jobs",
		Help: "Number of extraction jobs currently running",
	})

	ExportedFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slidex_exported_frames_total",
		Help: "Frames written to export artifacts, by mode",
	}, []string{"mode"})
)
