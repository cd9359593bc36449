// Package metrics holds the Prometheus collectors of the inspection service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lockaudit/lockaudit/internal/models"
)

const namespace = "lockaudit"

// Inspection results
const (
	ResultSuccess      = "success"
	ResultDecodeFailed = "decode_failure"
	ResultParseFailed  = "parse_failure"
	ResultError        = "error"
)

// Collector owns a registry so tests and servers never share global state
type Collector struct {
	registry *prometheus.Registry

	inspections *prometheus.CounterVec
	findings    *prometheus.CounterVec
	duration    prometheus.Histogram
	cacheHits   prometheus.Counter
	rateLimited prometheus.Counter
}

// New registers the collectors on reg, or on a fresh registry with the Go
// and process collectors when reg is nil
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	c := &Collector{
		registry: reg,
		inspections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inspections_total",
			Help:      "Policy inspections by result.",
		}, []string{"result"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Findings produced by severity.",
		}, []string{"severity"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inspect_duration_seconds",
			Help:      "Time to decode, parse and assess one policy.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Inspections served from the result cache.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(c.inspections, c.findings, c.duration, c.cacheHits, c.rateLimited)
	return c
}

// ObserveInspection records one pipeline run
func (c *Collector) ObserveInspection(result string, d time.Duration) {
	c.inspections.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		c.duration.Observe(d.Seconds())
	}
}

// AddFindings counts findings by severity
func (c *Collector) AddFindings(findings []models.Finding) {
	for _, f := range findings {
		c.findings.WithLabelValues(f.Severity.String()).Inc()
	}
}

func (c *Collector) CacheHit() {
	c.cacheHits.Inc()
}

func (c *Collector) RateLimited() {
	c.rateLimited.Inc()
}

// Registry for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
