// Package metrics exposes Prometheus metrics for the proxy: request counts
// and latencies by outcome, upstream failures by kind, and usage recorder
// drops.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/janus/pkg/config"
)

// Collector owns the Prometheus registry and all proxy metrics. Identity is
// a metric label; the label set is bounded by the configured credential
// count, so cardinality stays small.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
	recordsDropped  prometheus.Counter
}

// NewCollector creates a metrics collector with the given configuration.
// If registry is nil a fresh one is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "janus"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Total number of proxied requests by identity and outcome",
			},
			[]string{"identity", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"outcome"},
		),

		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_errors_total",
				Help:      "Total number of upstream failures by kind",
			},
			[]string{"kind"},
		),

		recordsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "usage_records_dropped_total",
				Help:      "Total number of usage records dropped by the recorder",
			},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.upstreamErrors,
		c.recordsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// RecordRequest records a dispositioned request. Identity is empty for
// denied requests whose credential matched nothing; it is labeled as
// "unknown" to keep the label set clean.
func (c *Collector) RecordRequest(identity, outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	if identity == "" {
		identity = "unknown"
	}
	c.requestsTotal.WithLabelValues(identity, outcome).Inc()
	c.requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordUpstreamError records an upstream failure by kind.
func (c *Collector) RecordUpstreamError(kind string) {
	if !c.config.Enabled {
		return
	}
	c.upstreamErrors.WithLabelValues(kind).Inc()
}

// RecordDroppedUsage records a usage record dropped by the recorder.
func (c *Collector) RecordDroppedUsage() {
	if !c.config.Enabled {
		return
	}
	c.recordsDropped.Inc()
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
