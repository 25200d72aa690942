// Package metrics defines the Prometheus collectors for load and table
// maintenance operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Namespace = "tabload"

	LabelTable  = "table"
	LabelStatus = "status"
	LabelMethod = "method"
	LabelRoute  = "route"
	LabelCode   = "code"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	RowsLoaded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "rows_loaded_total",
		Namespace: Namespace,
		Help:      "number of rows written to a table by bulk loads",
	}, []string{LabelTable})

	ChunksWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "chunks_written_total",
		Namespace: Namespace,
		Help:      "number of chunks committed by bulk loads",
	}, []string{LabelTable})

	Loads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "loads_total",
		Namespace: Namespace,
		Help:      "number of bulk loads by outcome",
	}, []string{LabelTable, LabelStatus})

	LoadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "load_duration_seconds",
		Namespace: Namespace,
		Help:      "wall time of bulk loads",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{LabelTable})

	IndexesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "indexes_created_total",
		Namespace: Namespace,
		Help:      "number of column indexes created",
	}, []string{LabelTable})

	TablesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "tables_dropped_total",
		Namespace: Namespace,
		Help:      "number of tables dropped",
	})

	CatalogTables = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "catalog_tables",
		Namespace: Namespace,
		Help:      "number of tables in the reflected catalog",
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "http_requests_total",
		Namespace: Namespace,
		Help:      "number of HTTP requests served, by route pattern",
	}, []string{LabelMethod, LabelRoute, LabelCode})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "http_request_duration_seconds",
		Namespace: Namespace,
		Help:      "latency of HTTP requests, by route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{LabelMethod, LabelRoute})
)

func Register(registry prometheus.Registerer) {
	registry.MustRegister(
		RowsLoaded,
		ChunksWritten,
		Loads,
		LoadDuration,
		IndexesCreated,
		TablesDropped,
		CatalogTables,
		HTTPRequests,
		HTTPDuration,
	)
}

// Handler serves the collectors registered on gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
