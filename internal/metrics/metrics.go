// Package metrics exposes Prometheus instruments for jobs and workers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so several instances can coexist in one
// process. All methods are safe on a nil Collector.
type Collector struct {
	registry *prometheus.Registry

	jobsSent      *prometheus.CounterVec
	jobsCompleted *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsPending   prometheus.Gauge
	workerSpawns  prometheus.Counter
	workerExits   prometheus.Counter
	unknownErrors prometheus.Counter
}

// NewCollector registers every instrument on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eslint_node_jobs_sent_total",
			Help: "Total number of jobs written to the worker",
		}, []string{"type"}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eslint_node_jobs_completed_total",
			Help: "Total number of jobs finished, by outcome",
		}, []string{"type", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eslint_node_job_duration_seconds",
			Help:    "Time from send to reply",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		jobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eslint_node_jobs_pending",
			Help: "Jobs waiting on a worker reply",
		}),
		workerSpawns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eslint_node_worker_spawns_total",
			Help: "Worker subprocesses started",
		}),
		workerExits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eslint_node_worker_exits_total",
			Help: "Worker subprocesses that exited or were killed",
		}),
		unknownErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eslint_node_unknown_worker_errors_total",
			Help: "Keyless worker errors with no job to attach to",
		}),
	}

	c.registry.MustRegister(
		c.jobsSent,
		c.jobsCompleted,
		c.jobDuration,
		c.jobsPending,
		c.workerSpawns,
		c.workerExits,
		c.unknownErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordSent(jobType string) {
	if c == nil {
		return
	}
	c.jobsSent.WithLabelValues(jobType).Inc()
}

// RecordCompleted records a finished job. outcome is "ok" or an error kind.
func (c *Collector) RecordCompleted(jobType, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.jobsCompleted.WithLabelValues(jobType, outcome).Inc()
	c.jobDuration.WithLabelValues(jobType).Observe(d.Seconds())
}

func (c *Collector) SetPending(n int) {
	if c == nil {
		return
	}
	c.jobsPending.Set(float64(n))
}

func (c *Collector) RecordSpawn() {
	if c == nil {
		return
	}
	c.workerSpawns.Inc()
}

func (c *Collector) RecordExit() {
	if c == nil {
		return
	}
	c.workerExits.Inc()
}

func (c *Collector) RecordUnknownError() {
	if c == nil {
		return
	}
	c.unknownErrors.Inc()
}
