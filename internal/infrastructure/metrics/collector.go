// Package metrics exposes Prometheus metrics for backend calls and the HTTP API.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"exo-agent/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusOK = "ok"
)

type Collector struct {
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector registers the collector's metrics on reg under namespace.
func NewCollector(namespace string, reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		backendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_calls_total",
				Help:      "Total number of generation backend calls",
			},
			[]string{"backend", "op", "status"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_call_duration_seconds",
				Help:      "Generation backend call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"backend", "op"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	for _, col := range []prometheus.Collector{c.backendCalls, c.backendDuration, c.httpRequests, c.httpDuration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) RecordBackendCall(backend, op string, d time.Duration, err error) {
	c.backendCalls.WithLabelValues(backend, op, Status(err)).Inc()
	c.backendDuration.WithLabelValues(backend, op).Observe(d.Seconds())
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Status names the error kind of err for use as a label value.
func Status(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, entity.ErrConfiguration):
		return "configuration"
	case errors.Is(err, entity.ErrUninitialized):
		return "uninitialized"
	case errors.Is(err, entity.ErrBackend):
		return "backend"
	default:
		return "error"
	}
}
