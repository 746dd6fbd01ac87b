package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Commit results.
const (
	CommitCommitted = "committed"
	CommitSkipped   = "skipped"
	CommitError     = "error"
)

// CommitMetrics covers the hourly snapshot commit.
type CommitMetrics struct {
	attempts      *prometheus.CounterVec
	duration      prometheus.Histogram
	lastCommitted prometheus.Gauge
}

// NewCommitMetrics creates the commit collectors and registers them.
func NewCommitMetrics(registry *prometheus.Registry) (*CommitMetrics, error) {
	m := &CommitMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "birdnet_autocommit_attempts_total",
			Help: "Hourly commit attempts, by result",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "birdnet_autocommit_duration_seconds",
			Help:    "Time spent running git for one commit attempt",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		lastCommitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "birdnet_autocommit_last_success_timestamp_seconds",
			Help: "Unix time of the last commit that recorded changes",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register commit metrics: %w", err)
	}
	return m, nil
}

// RecordAttempt counts one commit attempt.
func (m *CommitMetrics) RecordAttempt(result string, d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
	if result == CommitCommitted {
		m.lastCommitted.Set(float64(at.Unix()))
	}
}

// Describe implements the prometheus.Collector interface.
func (m *CommitMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.attempts.Describe(ch)
	m.duration.Describe(ch)
	m.lastCommitted.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *CommitMetrics) Collect(ch chan<- prometheus.Metric) {
	m.attempts.Collect(ch)
	m.duration.Collect(ch)
	m.lastCommitted.Collect(ch)
}
