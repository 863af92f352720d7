// Package metrics holds the Prometheus collectors of the mark pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	rebuilds        *prometheus.CounterVec
	rebuildDuration prometheus.Histogram
	lastUpdates     prometheus.Gauge
	lastDeletions   prometheus.Gauge
	indexedDates    prometheus.Gauge
	sourceErrors    *prometheus.CounterVec
	captures        *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "calmark_rebuilds_total",
			Help: "Index rebuilds by result",
		}, []string{"result"}),
		rebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "calmark_rebuild_duration_seconds",
			Help:    "Time to collect all sources and rebuild the index",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		lastUpdates: f.NewGauge(prometheus.GaugeOpts{
			Name: "calmark_last_rebuild_updates",
			Help: "Dates reported as updated by the last rebuild",
		}),
		lastDeletions: f.NewGauge(prometheus.GaugeOpts{
			Name: "calmark_last_rebuild_deletions",
			Help: "Dates reported as deleted by the last rebuild",
		}),
		indexedDates: f.NewGauge(prometheus.GaugeOpts{
			Name: "calmark_indexed_dates",
			Help: "Dates present in the live index",
		}),
		sourceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "calmark_source_errors_total",
			Help: "Mark source failures by source",
		}, []string{"source"}),
		captures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "calmark_preview_captures_total",
			Help: "Preview captures by result",
		}, []string{"result"}),
	}
}

// Rebuilt records a successful rebuild. The updates block equals the
// number of indexed dates.
func (m *Metrics) Rebuilt(updates, deletions int, took time.Duration) {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues("ok").Inc()
	m.rebuildDuration.Observe(took.Seconds())
	m.lastUpdates.Set(float64(updates))
	m.lastDeletions.Set(float64(deletions))
	m.indexedDates.Set(float64(updates))
}

func (m *Metrics) RebuildFailed() {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues("error").Inc()
}

func (m *Metrics) SourceError(source string) {
	if m == nil {
		return
	}
	m.sourceErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) Captured(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.captures.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
