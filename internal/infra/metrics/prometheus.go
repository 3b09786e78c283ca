package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_sampling_jobs_processed_total",
		Help: "Total number of sampling jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_sampling_job_duration_seconds",
		Help:    "Duration of each stage of the sampling pipeline",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_frames_sampled_total",
		Help: "Total number of frames emitted by the sampler, by sampling mode",
	}, []string{"mode"})

	DecoderStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_decoder_stops_total",
		Help: "Passes or ranges cut short because the decoder had no more frames",
	}, []string{"scope"})

	FrameBatchBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fiapx_frame_batch_bytes",
		Help:    "Decoded pixel bytes held per frame batch",
		Buckets: prometheus.ExponentialBuckets(1<<20, 2, 10),
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_sampling_active_workers",
		Help: "Number of workers currently sampling a video",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_sampling_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
