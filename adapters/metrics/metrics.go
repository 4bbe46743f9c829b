// Package metrics provides Prometheus metrics collection for dbedit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dbedit"

// Collector holds all Prometheus metrics for dbedit.
type Collector struct {
	// Document metrics
	DocumentsLoaded *prometheus.CounterVec
	LoadErrors      *prometheus.CounterVec
	Records         *prometheus.GaugeVec
	FilesSaved      *prometheus.CounterVec
	SaveErrors      prometheus.Counter
	LastSave        prometheus.Gauge

	// Record metrics
	RecordsSaved     *prometheus.CounterVec
	RecordsAdded     *prometheus.CounterVec
	RecordsDeleted   *prometheus.CounterVec
	ValidationErrors *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		DocumentsLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_loaded_total",
				Help:      "Total number of documents loaded",
			},
			[]string{"profile"},
		),
		LoadErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_errors_total",
				Help:      "Total number of rejected document loads",
			},
			[]string{"code"},
		),
		Records: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records",
				Help:      "Number of records in the open document",
			},
			[]string{"profile"},
		),
		FilesSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_saved_total",
				Help:      "Total number of document files written",
			},
			[]string{"profile"},
		),
		SaveErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "save_errors_total",
				Help:      "Total number of failed document writes",
			},
		),
		LastSave: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_save_timestamp",
				Help:      "Unix timestamp of the last successful document write",
			},
		),
		RecordsSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_saved_total",
				Help:      "Total number of record edits committed",
			},
			[]string{"profile"},
		),
		RecordsAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_added_total",
				Help:      "Total number of records added",
			},
			[]string{"profile"},
		),
		RecordsDeleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_deleted_total",
				Help:      "Total number of records deleted",
			},
			[]string{"profile"},
		),
		ValidationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_errors_total",
				Help:      "Total number of rejected record edits",
			},
			[]string{"profile"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP API requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP API request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
	}
}

// StatusClass reduces an HTTP status to its class label, e.g. 404 -> "4xx".
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
