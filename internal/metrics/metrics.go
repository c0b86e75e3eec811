// Package metrics exposes Prometheus instruments for workbook loads and
// pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "sondajes/internal/errors"
)

const namespace = "sondajes"

// Metrics holds the collectors registered for one dashboard process.
type Metrics struct {
	registry     *prometheus.Registry
	loads        *prometheus.CounterVec
	loadDuration prometheus.Histogram
	runs         *prometheus.CounterVec
	rowsKept     prometheus.Histogram
	sessions     prometheus.Gauge
}

// New creates a private registry so tests and multiple servers never collide
// on the default one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Workbook loads by result code.",
		}, []string{"result"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time spent parsing a workbook sheet.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Filter-and-summary runs by dashboard.",
		}, []string{"dashboard"}),
		rowsKept: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_rows",
			Help:      "Rows surviving the filters of a run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live upload sessions.",
		}),
	}
	m.registry.MustRegister(m.loads, m.loadDuration, m.runs, m.rowsKept, m.sessions)
	return m
}

// ObserveLoad records a load attempt. A nil err counts as "ok"; otherwise the
// AppError code labels the failure.
func (m *Metrics) ObserveLoad(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = apperrors.GetCode(err)
	}
	m.loads.WithLabelValues(result).Inc()
	m.loadDuration.Observe(elapsed.Seconds())
}

// ObserveRun records one pipeline run and how many rows it kept.
func (m *Metrics) ObserveRun(dashboard string, rows int) {
	m.runs.WithLabelValues(dashboard).Inc()
	m.rowsKept.Observe(float64(rows))
}

// SetSessions updates the live session gauge.
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
