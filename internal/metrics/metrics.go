// Package metrics holds the Prometheus instrumentation of a pipeline run.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set bundles the run metrics, registered on a private registry so tests
// can create as many sets as they like.
type Set struct {
	VolumesProcessed prometheus.Counter
	VolumesFailed    *prometheus.CounterVec
	VolumesEmpty     prometheus.Counter

	BatchesTotal   prometheus.Counter
	BatchesFailed  prometheus.Counter
	BatchDuration  prometheus.Histogram
	RowsWritten    *prometheus.CounterVec
	CheckpointSize prometheus.Gauge
}

// New creates and registers the pipeline metric set.
func New(reg prometheus.Registerer) *Set {
	m := &Set{
		VolumesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokenmill",
			Name:      "volumes_processed_total",
			Help:      "Volumes successfully extracted and appended",
		}),

		VolumesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenmill",
			Name:      "volumes_failed_total",
			Help:      "Volumes skipped inside a batch",
		}, []string{"reason"}),

		VolumesEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokenmill",
			Name:      "volumes_empty_total",
			Help:      "Volumes with an empty token listing (done, no rows)",
		}),

		BatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokenmill",
			Name:      "batches_total",
			Help:      "Batches dispatched to workers",
		}),

		BatchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokenmill",
			Name:      "batches_failed_total",
			Help:      "Batches whose store append failed (retried next run)",
		}),

		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tokenmill",
			Name:      "batch_duration_seconds",
			Help:      "Decode+extract+append duration per batch",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenmill",
			Name:      "rows_written_total",
			Help:      "Rows appended to the store tables",
		}, []string{"table"}),

		CheckpointSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tokenmill",
			Name:      "checkpoint_ids",
			Help:      "Identifiers in the checkpoint log",
		}),
	}

	reg.MustRegister(
		m.VolumesProcessed, m.VolumesFailed, m.VolumesEmpty,
		m.BatchesTotal, m.BatchesFailed, m.BatchDuration,
		m.RowsWritten, m.CheckpointSize,
	)
	return m
}
