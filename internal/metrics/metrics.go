// Package metrics defines the prometheus collectors for both tiers. Both
// servers expose them on /metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/taskstream/taskstream/internal/pipeline"
)

var (
	// StageDuration tracks per-stage pipeline latency.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskstream_pipeline_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// StageOutput tracks how many elements each stage produced.
	StageOutput = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskstream_pipeline_stage_output_elements",
		Help:    "Number of elements produced by each pipeline stage",
		Buckets: prometheus.ExponentialBuckets(1, 10, 7),
	}, []string{"stage"})

	// StreamedRecords counts records emitted over the streamed transport.
	StreamedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskstream_streamed_records_total",
		Help: "Total task records streamed to callers",
	})

	// FetchAttempts counts backend fetch attempts by outcome.
	// Labels:
	//   - outcome: "success" or "failure"
	FetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskstream_fetch_attempts_total",
		Help: "Backend fetch attempts by outcome",
	}, []string{"outcome"})

	// FetchDegraded counts fetches that exhausted their retries and
	// degraded to an empty result.
	FetchDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskstream_fetch_degraded_total",
		Help: "Fetches degraded to an empty result after retry exhaustion",
	})

	// HealthChecks counts backend health probes by result.
	// Labels:
	//   - result: "ok" or "unavailable"
	HealthChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskstream_health_checks_total",
		Help: "Backend health checks by result",
	}, []string{"result"})
)

// PipelineObserver records stage durations and output sizes.
type PipelineObserver struct{}

var _ pipeline.Observer = PipelineObserver{}

func (PipelineObserver) StageStart(context.Context, string) {}

func (PipelineObserver) StageEnd(_ context.Context, stage string, count int, elapsed time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	StageOutput.WithLabelValues(stage).Observe(float64(count))
}
