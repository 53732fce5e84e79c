// Package metrics defines the Prometheus collectors for the search service
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RequestErrors     *prometheus.CounterVec
	ResultsCount      *prometheus.HistogramVec
	CacheHitsTotal    *prometheus.CounterVec
	CacheMissesTotal  *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
	FramesDecoded     prometheus.Counter
	FramesResynced    prometheus.Counter
	QueueDepth        prometheus.Gauge
	TasksDropped      prometheus.Counter
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goso_requests_total",
				Help: "Total requests served, by kind (recommend, search).",
			},
			[]string{"kind"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goso_request_duration_seconds",
				Help:    "Request latency in seconds, by kind.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"kind"},
		),
		RequestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goso_request_errors_total",
				Help: "Total error responses sent, by wire code.",
			},
			[]string{"code"},
		),
		ResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goso_results_count",
				Help:    "Number of results returned per request, by kind.",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{"kind"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goso_cache_hits_total",
				Help: "Cache hits, by cache name.",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goso_cache_misses_total",
				Help: "Cache misses, by cache name.",
			},
			[]string{"cache"},
		),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "goso_active_connections",
				Help: "Open client connections.",
			},
		),
		FramesDecoded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "goso_frames_decoded_total",
				Help: "Complete frames decoded from client streams.",
			},
		),
		FramesResynced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "goso_frames_resynced_total",
				Help: "Bytes skipped while resynchronizing on unknown frame types.",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "goso_worker_queue_depth",
				Help: "Tasks waiting in the worker pool queue.",
			},
		),
		TasksDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "goso_tasks_dropped_total",
				Help: "Tasks discarded by forced shutdown.",
			},
		),
	}
	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestErrors,
		m.ResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ActiveConnections,
		m.FramesDecoded,
		m.FramesResynced,
		m.QueueDepth,
		m.TasksDropped,
	)
	return m
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
