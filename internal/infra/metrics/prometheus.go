package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watermark_jobs_total",
		Help: "Total number of pipeline jobs, by final status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "watermark_stage_duration_seconds",
		Help:    "Duration of pipeline stage executions",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	ChunksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watermark_chunks_processed_total",
		Help: "Total number of chunk tasks completed, by stage",
	}, []string{"stage"})

	BarrierTriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watermark_barrier_triggers_total",
		Help: "Fan-in signals emitted, by stage; more than one per job and stage indicates a barrier bug",
	}, []string{"stage"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watermark_active_workers",
		Help: "Number of currently active workers processing chunk tasks",
	})

	RevisionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watermark_revision_conflicts_total",
		Help: "Optimistic-concurrency retries in the job store",
	})
)
