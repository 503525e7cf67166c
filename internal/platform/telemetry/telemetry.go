// Package telemetry exposes the clinic's Prometheus metrics: HTTP traffic,
// name resolution outcomes and consultation priority classification.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinic"

// Resolution outcomes recorded by RecordResolution.
const (
	OutcomeMatched   = "matched"
	OutcomeNotFound  = "not_found"
	OutcomeAmbiguous = "ambiguous"
)

// Provider owns a private registry so tests can build as many as they like.
type Provider struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	resolutions  *prometheus.CounterVec
	priorities   *prometheus.CounterVec
}

// PoolStatsFunc reports (total, idle, acquired) connections.
type PoolStatsFunc func() (total, idle, acquired int32)

// NewProvider builds the metric set. poolStats may be nil.
func NewProvider(poolStats PoolStatsFunc) (*Provider, error) {
	p := &Provider{registry: prometheus.NewRegistry()}

	p.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	p.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken for HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	p.resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_resolutions_total",
			Help:      "Name-to-record resolutions by role and outcome",
		},
		[]string{"role", "outcome"},
	)
	p.priorities = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consultation_priority_total",
			Help:      "Consultation priority classifications by label",
		},
		[]string{"priority"},
	)

	cs := []prometheus.Collector{
		p.httpRequests, p.httpDuration, p.resolutions, p.priorities,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if poolStats != nil {
		cs = append(cs, poolGauges(poolStats)...)
	}
	for _, c := range cs {
		if err := p.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func poolGauges(stats PoolStatsFunc) []prometheus.Collector {
	gauge := func(name, help string, pick func(t, i, a int32) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(pick(stats()))
		})
	}
	return []prometheus.Collector{
		gauge("db_pool_total_connections", "Connections held by the pool", func(t, _, _ int32) int32 { return t }),
		gauge("db_pool_idle_connections", "Idle pool connections", func(_, i, _ int32) int32 { return i }),
		gauge("db_pool_acquired_connections", "Connections currently checked out", func(_, _, a int32) int32 { return a }),
	}
}

// Registry is exposed for tests and for callers that register extra collectors.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// RecordResolution counts one identity resolution. role is "patient" or "doctor".
func (p *Provider) RecordResolution(role, outcome string) {
	if p == nil {
		return
	}
	p.resolutions.WithLabelValues(role, outcome).Inc()
}

// RecordPriority counts one consultation classification.
func (p *Provider) RecordPriority(label string) {
	if p == nil {
		return
	}
	p.priorities.WithLabelValues(label).Inc()
}

// MetricsMiddleware records count and latency per matched route.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && !c.Response().Committed {
				status = 500
			}

			p.httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
			p.httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// PrometheusHandler serves the registry in the text exposition format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}
