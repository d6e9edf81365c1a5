// Package metrics exposes Prometheus instrumentation for the adapter.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the adapter's metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	jobs                *prometheus.CounterVec
	jobLatency          *prometheus.HistogramVec
	persistenceFailures *prometheus.CounterVec
	fetchLatency        *prometheus.HistogramVec
	fetchFailures       *prometheus.CounterVec
	retentionDeleted    prometheus.Counter
}

// NewCollector creates a Collector registered on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adapter_jobs_total",
			Help: "Job runs by outcome.",
		}, []string{"outcome"}),
		jobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adapter_job_duration_seconds",
			Help:    "Time from request receipt to envelope, by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adapter_persistence_failures_total",
			Help: "Absorbed persistence failures by operation.",
		}, []string{"op"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adapter_provider_fetch_duration_seconds",
			Help:    "Provider fetch latency including retries.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adapter_provider_fetch_failures_total",
			Help: "Provider fetches that returned an error.",
		}, []string{"provider"}),
		retentionDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adapter_retention_deleted_total",
			Help: "Measurements removed by the retention job.",
		}),
	}

	c.registry.MustRegister(
		c.jobs,
		c.jobLatency,
		c.persistenceFailures,
		c.fetchLatency,
		c.fetchFailures,
		c.retentionDeleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveJob records one finished job run.
func (c *Collector) ObserveJob(outcome string, elapsed time.Duration) {
	c.jobs.WithLabelValues(outcome).Inc()
	c.jobLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObservePersistenceFailure records a store failure that was absorbed.
func (c *Collector) ObservePersistenceFailure(op string) {
	c.persistenceFailures.WithLabelValues(op).Inc()
}

// ObserveFetch records one provider fetch.
func (c *Collector) ObserveFetch(provider string, elapsed time.Duration, err error) {
	c.fetchLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	if err != nil {
		c.fetchFailures.WithLabelValues(provider).Inc()
	}
}

// ObserveRetention records measurements deleted by a retention run.
func (c *Collector) ObserveRetention(deleted int64) {
	c.retentionDeleted.Add(float64(deleted))
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
