package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics covers the hour-keyed render cache.
type CacheMetrics struct {
	lookups        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	renderErrors   *prometheus.CounterVec
}

// NewCacheMetrics creates the cache collectors and registers them.
func NewCacheMetrics(registry *prometheus.Registry) (*CacheMetrics, error) {
	m := &CacheMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "birdnet_render_cache_lookups_total",
			Help: "Render cache lookups, by namespace and result",
		}, []string{"namespace", "result"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "birdnet_render_duration_seconds",
			Help:    "Time spent rendering a cache miss",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"namespace"}),
		renderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "birdnet_render_errors_total",
			Help: "Renders that failed and were not cached",
		}, []string{"namespace"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register cache metrics: %w", err)
	}
	return m, nil
}

// RecordHit counts a lookup served from the cache.
func (m *CacheMetrics) RecordHit(namespace string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(namespace, "hit").Inc()
}

// RecordMiss counts a lookup that triggered a render.
func (m *CacheMetrics) RecordMiss(namespace string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(namespace, "miss").Inc()
}

// ObserveRender records a render and whether it failed.
func (m *CacheMetrics) ObserveRender(namespace string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(namespace).Observe(d.Seconds())
	if err != nil {
		m.renderErrors.WithLabelValues(namespace).Inc()
	}
}

// Describe implements the prometheus.Collector interface.
func (m *CacheMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.lookups.Describe(ch)
	m.renderDuration.Describe(ch)
	m.renderErrors.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *CacheMetrics) Collect(ch chan<- prometheus.Metric) {
	m.lookups.Collect(ch)
	m.renderDuration.Collect(ch)
	m.renderErrors.Collect(ch)
}
