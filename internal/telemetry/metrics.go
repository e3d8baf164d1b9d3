package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's instrumentation. One instance is shared by
// every phase of a process.
type Metrics struct {
	ModelRequests    *prometheus.CounterVec
	SpeechRequests   *prometheus.CounterVec
	PipelineRuns     *prometheus.CounterVec
	PipelineSeconds  prometheus.Histogram
	LinesSynthesized prometheus.Counter
}

// NewMetrics registers the pipeline metrics on reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry, or nil for
// unregistered metrics in one-shot runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ModelRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scriptcast_model_requests_total",
			Help: "Chat completion requests by outcome.",
		}, []string{"status"}),
		SpeechRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scriptcast_speech_requests_total",
			Help: "Speech synthesis requests by outcome.",
		}, []string{"status"}),
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scriptcast_pipeline_runs_total",
			Help: "Pipeline runs by source kind and outcome.",
		}, []string{"source", "status"}),
		PipelineSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scriptcast_pipeline_duration_seconds",
			Help:    "Wall time of a full pipeline run.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}),
		LinesSynthesized: factory.NewCounter(prometheus.CounterOpts{
			Name: "scriptcast_lines_synthesized_total",
			Help: "Dialogue lines rendered to audio.",
		}),
	}
}
