// Package metrics provides the Prometheus collectors of birdnet-listener.
// Every collector tolerates a nil receiver so that components can run
// without telemetry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Window outcomes.
const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Drop stages.
const (
	StageCapture = "capture" // ring buffer overflow before a window was cut
	StageQueue   = "queue"   // oldest window evicted from a full queue
)

// Detection outcomes.
const (
	OutcomeStored         = "stored"
	OutcomeBelowThreshold = "filtered_threshold"
	OutcomeHuman          = "filtered_human"
	OutcomeExcluded       = "filtered_excluded"
	OutcomeStoreError     = "store_error"
)

// PipelineMetrics covers capture, queueing and classification.
type PipelineMetrics struct {
	windowsCaptured    prometheus.Counter
	windowsProcessed   *prometheus.CounterVec
	windowsDropped     *prometheus.CounterVec
	queueDepth         prometheus.Gauge
	classifyDuration   prometheus.Histogram
	detections         *prometheus.CounterVec
	lastProcessedEpoch prometheus.Gauge
}

// NewPipelineMetrics creates the pipeline collectors and registers them.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.windowsCaptured = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdnet_windows_captured_total",
		Help: "Total number of audio windows handed to the analysis queue",
	})
	m.windowsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_windows_processed_total",
		Help: "Total number of windows taken from the queue, by outcome",
	}, []string{"status"})
	m.windowsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_windows_dropped_total",
		Help: "Total number of windows or window fragments lost, by stage",
	}, []string{"stage"})
	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdnet_queue_depth",
		Help: "Windows waiting for classification",
	})
	m.classifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "birdnet_classification_duration_seconds",
		Help:    "Time spent classifying one window",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	m.detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_detections_total",
		Help: "Classifier detections, by what happened to them",
	}, []string{"outcome"})
	m.lastProcessedEpoch = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdnet_last_window_processed_timestamp_seconds",
		Help: "Unix time the last window finished processing",
	})
}

// RecordWindowCaptured counts a window entering the queue.
func (m *PipelineMetrics) RecordWindowCaptured() {
	if m == nil {
		return
	}
	m.windowsCaptured.Inc()
}

// RecordWindowProcessed counts a finished window and stamps the last processed time.
func (m *PipelineMetrics) RecordWindowProcessed(status string, at time.Time) {
	if m == nil {
		return
	}
	m.windowsProcessed.WithLabelValues(status).Inc()
	m.lastProcessedEpoch.Set(float64(at.Unix()))
}

// RecordWindowDropped counts lost audio at the given stage.
func (m *PipelineMetrics) RecordWindowDropped(stage string) {
	if m == nil {
		return
	}
	m.windowsDropped.WithLabelValues(stage).Inc()
}

// SetQueueDepth reports the current queue length.
func (m *PipelineMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// ObserveClassification records one classifier call.
func (m *PipelineMetrics) ObserveClassification(d time.Duration) {
	if m == nil {
		return
	}
	m.classifyDuration.Observe(d.Seconds())
}

// RecordDetection counts a classifier detection by outcome.
func (m *PipelineMetrics) RecordDetection(outcome string) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(outcome).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.windowsCaptured.Describe(ch)
	m.windowsProcessed.Describe(ch)
	m.windowsDropped.Describe(ch)
	m.queueDepth.Describe(ch)
	m.classifyDuration.Describe(ch)
	m.detections.Describe(ch)
	m.lastProcessedEpoch.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.windowsCaptured.Collect(ch)
	m.windowsProcessed.Collect(ch)
	m.windowsDropped.Collect(ch)
	m.queueDepth.Collect(ch)
	m.classifyDuration.Collect(ch)
	m.detections.Collect(ch)
	m.lastProcessedEpoch.Collect(ch)
}
