// Package metrics exposes Prometheus metrics for workspace operations and
// the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Collector records operation counts and latencies. A nil *Collector is
// valid and records nothing.
type Collector struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	skippedRows       *prometheus.CounterVec
	graphNodes        *prometheus.GaugeVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewCollector registers the metrics with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler, or a
// fresh registry in tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneymap_workspace_operations_total",
				Help: "Total number of workspace operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moneymap_workspace_operation_duration_seconds",
				Help:    "Workspace operation duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
		skippedRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneymap_replace_skipped_rows_total",
				Help: "Rows dropped by replace because a reference did not resolve",
			},
			[]string{"variant"},
		),
		graphNodes: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "moneymap_graph_nodes",
				Help: "Node count of the most recently written graph per variant",
			},
			[]string{"variant"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneymap_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moneymap_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveOperation records one workspace operation.
func (c *Collector) ObserveOperation(operation string, err error, d time.Duration) {
	if c == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	c.operations.WithLabelValues(operation, status).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordReplace records the outcome of a replace into variant.
func (c *Collector) RecordReplace(variant string, nodes, skipped int) {
	if c == nil {
		return
	}
	c.graphNodes.WithLabelValues(variant).Set(float64(nodes))
	if skipped > 0 {
		c.skippedRows.WithLabelValues(variant).Add(float64(skipped))
	}
}

// ObserveRequest records one HTTP request.
func (c *Collector) ObserveRequest(method, route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, statusCode(code)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
