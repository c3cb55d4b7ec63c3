// Package metrics is the process-wide Prometheus registry, grounded on
// the teacher's Metrics struct (same "build a handful of named
// collectors, MustRegister them once, hand the struct to every
// component" shape), extended with one collector per component this
// indexer actually runs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the indexer's components update. A
// single instance is constructed in cmd/indexer/main.go and threaded
// into each package that needs it.
type Metrics struct {
	PipelineDepth       prometheus.Gauge
	CheckpointHeight    prometheus.Gauge
	BlockProcessMs      prometheus.Histogram
	BatchQueueSize      *prometheus.GaugeVec
	BatchFlushMs        *prometheus.HistogramVec
	BatchFlushErrors    *prometheus.CounterVec
	RPCLatencyMs        *prometheus.HistogramVec
	RPCRetries          *prometheus.CounterVec
	RollupCycleMs       prometheus.Histogram
	HoldersSweepMs      prometheus.Histogram
	FastTrackTaskErrors *prometheus.CounterVec
}

// New builds and registers the full collector set.
func New() *Metrics {
	m := &Metrics{
		PipelineDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indexer_pipeline_depth",
			Help: "Number of heights currently in flight in the block processor pipeline.",
		}),
		CheckpointHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indexer_checkpoint_height",
			Help: "Last height committed to index_state.",
		}),
		BlockProcessMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indexer_block_process_ms",
			Help:    "Wall-clock time to process a single height through all phases.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		}),
		BatchQueueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indexer_batch_queue_size",
			Help: "Current number of buffered items in a batch writer.",
		}, []string{"queue"}),
		BatchFlushMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indexer_batch_flush_ms",
			Help:    "Time taken by a batch writer flush.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"queue"}),
		BatchFlushErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_batch_flush_errors_total",
			Help: "Number of batch writer flushes that returned an error.",
		}, []string{"queue"}),
		RPCLatencyMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indexer_rpc_latency_ms",
			Help:    "Latency of a single chain client call, by endpoint kind and path.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		}, []string{"endpoint", "path"}),
		RPCRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_rpc_retries_total",
			Help: "Number of retried chain client calls, by endpoint kind.",
		}, []string{"endpoint"}),
		RollupCycleMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indexer_rollup_cycle_ms",
			Help:    "Wall-clock time of one rollup engine cycle across all buckets.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
		HoldersSweepMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indexer_holders_sweep_ms",
			Help:    "Wall-clock time of one holders sweeper cycle.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
		FastTrackTaskErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_fasttrack_task_errors_total",
			Help: "Number of failed best-effort fast-track tasks, by task name.",
		}, []string{"task"}),
	}

	prometheus.MustRegister(
		m.PipelineDepth,
		m.CheckpointHeight,
		m.BlockProcessMs,
		m.BatchQueueSize,
		m.BatchFlushMs,
		m.BatchFlushErrors,
		m.RPCLatencyMs,
		m.RPCRetries,
		m.RollupCycleMs,
		m.HoldersSweepMs,
		m.FastTrackTaskErrors,
	)

	return m
}
