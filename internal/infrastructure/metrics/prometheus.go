// Package metrics exposes reconciliation and ERP client metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricRunsTotal          = "reconciliation_runs_total"
	MetricItemsTotal         = "reconciliation_items_total"
	MetricRunDurationSeconds = "reconciliation_run_duration_seconds"
	MetricERPRequestsTotal   = "erp_requests_total"
	MetricERPDurationSeconds = "erp_request_duration_seconds"
)

// Run outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeConflict = "conflict"
)

// Recorder owns a private registry and the reconciliation collectors.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	itemsTotal         *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	erpRequestsTotal   *prometheus.CounterVec
	erpRequestDuration *prometheus.HistogramVec
}

// NewRecorder creates a recorder with Go runtime and process collectors registered
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRunsTotal,
				Help: "Reconciliation runs by outcome and mode.",
			},
			[]string{"outcome", "dry_run"},
		),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricItemsTotal,
				Help: "Report items produced by reconciliation runs, by bucket.",
			},
			[]string{"bucket"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRunDurationSeconds,
				Help:    "Duration of reconciliation runs in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"dry_run"},
		),
		erpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricERPRequestsTotal,
				Help: "HTTP requests sent to the ERP, by endpoint and status.",
			},
			[]string{"endpoint", "status"},
		),
		erpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricERPDurationSeconds,
				Help:    "Duration of ERP HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.runsTotal,
		r.itemsTotal,
		r.runDuration,
		r.erpRequestsTotal,
		r.erpRequestDuration,
	)
	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordRun counts a finished run and observes its duration
func (r *Recorder) RecordRun(outcome string, dryRun bool, duration time.Duration) {
	mode := strconv.FormatBool(dryRun)
	r.runsTotal.WithLabelValues(outcome, mode).Inc()
	r.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// AddItems adds n report items to bucket
func (r *Recorder) AddItems(bucket string, n int) {
	if n <= 0 {
		return
	}
	r.itemsTotal.WithLabelValues(bucket).Add(float64(n))
}

// ObserveERPRequest records one ERP round trip
func (r *Recorder) ObserveERPRequest(endpoint, status string, duration time.Duration) {
	r.erpRequestsTotal.WithLabelValues(endpoint, status).Inc()
	r.erpRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
