package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

// Metrics holds all Prometheus metrics for the service on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	batchRuns     *prometheus.CounterVec
	batchRecords  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchLastRun  *prometheus.GaugeVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "policyadmin_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "policyadmin_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		batchRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "policyadmin_batch_runs_total",
			Help: "Batch job runs by outcome",
		}, []string{"job", "outcome"}),
		batchRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "policyadmin_batch_records_total",
			Help: "Policy holders visited by batch jobs, by result",
		}, []string{"job", "result"}),
		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "policyadmin_batch_duration_seconds",
			Help:    "Wall time of one batch job run",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"job"}),
		batchLastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "policyadmin_batch_last_success_timestamp_seconds",
			Help: "Unix time of the last batch run that finished without error",
		}, []string{"job"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// ObserveBatch records one run of job. err is the run's own failure, not
// per-record failures, which are counted from res.
func (m *Metrics) ObserveBatch(res core.BatchResult, d time.Duration, err error) {
	job := string(res.Job)
	outcome := "ok"
	switch {
	case res.Interrupted:
		outcome = "interrupted"
	case err != nil:
		outcome = "error"
	}
	m.batchRuns.WithLabelValues(job, outcome).Inc()
	m.batchDuration.WithLabelValues(job).Observe(d.Seconds())

	m.batchRecords.WithLabelValues(job, "processed").Add(float64(res.Processed))
	m.batchRecords.WithLabelValues(job, "changed").Add(float64(res.Changed))
	m.batchRecords.WithLabelValues(job, "skipped").Add(float64(res.Skipped))
	m.batchRecords.WithLabelValues(job, "failed").Add(float64(res.Failed))

	if outcome == "ok" {
		m.batchLastRun.WithLabelValues(job).SetToCurrentTime()
	}
}
