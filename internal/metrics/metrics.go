// Package metrics exports prometheus counters and gauges for the batch
// downloader: per-transfer outcomes, detector verdicts, pool occupancy,
// probe overhead, and migration transitions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchdl",
		Subsystem: "transfer",
		Name:      "total",
		Help:      "Total per-URL transfer attempts, partitioned by outcome",
	}, []string{"outcome"})

	TransferBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchdl",
		Subsystem: "transfer",
		Name:      "bytes_total",
		Help:      "Total bytes written across all transfers",
	}, []string{"path"})

	TransferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "batchdl",
		Subsystem: "transfer",
		Name:      "duration_seconds",
		Help:      "Per-URL transfer duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	DetectorVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchdl",
		Subsystem: "detector",
		Name:      "verdicts_total",
		Help:      "Total weak-link verdicts, partitioned by isWeak",
	}, []string{"is_weak"})

	DetectorConfidence = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "batchdl",
		Subsystem: "detector",
		Name:      "confidence",
		Help:      "Distribution of weak-link detector confidence values",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"is_weak"})

	PoolRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "batchdl",
		Subsystem: "pool",
		Name:      "running",
		Help:      "Current number of running tasks in the priority pool",
	})

	PoolQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "batchdl",
		Subsystem: "pool",
		Name:      "queue_depth",
		Help:      "Current queue depth, partitioned by priority class",
	}, []string{"class"})

	PoolLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "batchdl",
		Subsystem: "pool",
		Name:      "limit",
		Help:      "Current parallelism limit of the priority pool",
	})

	ProbesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "batchdl",
		Subsystem: "probe",
		Name:      "total",
		Help:      "Total light probes issued",
	})

	ProbeCostSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "batchdl",
		Subsystem: "probe",
		Name:      "cost_seconds_total",
		Help:      "Accumulated wall time spent on light probes",
	})

	MigrationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchdl",
		Subsystem: "migration",
		Name:      "transitions_total",
		Help:      "Total migration state transitions",
	}, []string{"to"})

	MigrationPauseSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "batchdl",
		Subsystem: "migration",
		Name:      "pause_seconds",
		Help:      "Time spent paused during a link-change migration",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)
