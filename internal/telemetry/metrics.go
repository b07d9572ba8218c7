package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the dashboard.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitRejects     prometheus.Counter

	AnalysisRunsTotal    *prometheus.CounterVec
	AnalysisStageSeconds *prometheus.HistogramVec
	CacheLookups         *prometheus.CounterVec

	DatasetPoints  prometheus.Gauge
	DatasetTrips   prometheus.Gauge
	DatasetVersion prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry. A registry per
// instance keeps tests independent of the default global registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		RateLimitRejects: f.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_rejects_total",
				Help: "Requests rejected by the per-IP rate limiter",
			},
		),
		AnalysisRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_runs_total",
				Help: "Analysis runs by analyzer and final status",
			},
			[]string{"analyzer", "status"},
		),
		AnalysisStageSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_stage_duration_seconds",
				Help:    "Duration of analysis pipeline stages",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"analyzer", "stage"},
		),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_cache_lookups_total",
				Help: "Analysis result cache lookups by result",
			},
			[]string{"result"},
		),
		DatasetPoints: f.NewGauge(prometheus.GaugeOpts{
			Name: "dataset_points",
			Help: "GPS points in the loaded dataset",
		}),
		DatasetTrips: f.NewGauge(prometheus.GaugeOpts{
			Name: "dataset_trips",
			Help: "Trips in the loaded dataset",
		}),
		DatasetVersion: f.NewGauge(prometheus.GaugeOpts{
			Name: "dataset_version",
			Help: "Monotonic version of the loaded dataset",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRun records the final status of an analysis run.
func (m *Metrics) RecordRun(analyzer, status string) {
	m.AnalysisRunsTotal.WithLabelValues(analyzer, status).Inc()
}

// RecordStages observes a map of stage name to seconds.
func (m *Metrics) RecordStages(analyzer string, stages map[string]float64) {
	for stage, secs := range stages {
		m.AnalysisStageSeconds.WithLabelValues(analyzer, stage).Observe(secs)
	}
}

// RecordCache records a cache hit or miss.
func (m *Metrics) RecordCache(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// SetDataset updates the dataset gauges.
func (m *Metrics) SetDataset(points, trips int, version int64) {
	m.DatasetPoints.Set(float64(points))
	m.DatasetTrips.Set(float64(trips))
	m.DatasetVersion.Set(float64(version))
}
