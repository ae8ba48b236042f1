package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChatRequests       *prometheus.CounterVec
	SynthesisAttempts  *prometheus.CounterVec
	ExternalToolRuns   *prometheus.CounterVec
	StageLatency       *prometheus.HistogramVec
	SegmentsPerRequest prometheus.Histogram

	stages *stageWindow
}

// NewMetrics registers instruments on the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith registers instruments on reg, which lets tests use a fresh registry.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"outcome"}),
		SynthesisAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_attempts_total",
			Help:      "Speech synthesis attempts by outcome (success, retryable_failure, permanent_failure).",
		}, []string{"outcome"}),
		ExternalToolRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_tool_runs_total",
			Help:      "Transcoder and viseme extractor runs by tool and outcome.",
		}, []string{"tool", "outcome"}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_latency_ms",
			Help:      "Pipeline stage latency in milliseconds.",
			Buckets:   []float64{5, 25, 100, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}, []string{"stage"}),
		SegmentsPerRequest: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segments_per_request",
			Help:      "Reply segments produced per completed request.",
			Buckets:   []float64{0, 1, 2, 3},
		}),
		stages: newStageWindow(256),
	}
}

func (m *Metrics) IncChatRequest(outcome string) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncSynthesisAttempt(outcome string) {
	if m == nil {
		return
	}
	m.SynthesisAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncToolRun(tool, outcome string) {
	if m == nil {
		return
	}
	m.ExternalToolRuns.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) ObserveSegments(n int) {
	if m == nil {
		return
	}
	m.SegmentsPerRequest.Observe(float64(n))
}

// ObserveStage records d on both the histogram and the rolling window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Microseconds()) / 1000
	m.StageLatency.WithLabelValues(stage).Observe(ms)
	m.stages.Observe(stage, ms)
}

// ObserveStageFailure counts a stage that ended in an error.
func (m *Metrics) ObserveStageFailure(stage string) {
	if m == nil {
		return
	}
	m.stages.ObserveFailure(stage)
}

// ObserveIndicator counts a non-latency event (e.g. a truncated reply) in the window.
func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.stages.ObserveIndicator(name)
}

func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC(), Stages: []StageStats{}}
	}
	return m.stages.Snapshot()
}

func (m *Metrics) ResetStages() {
	if m == nil {
		return
	}
	m.stages.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsHandlerFor serves a specific gatherer.
func MetricsHandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
