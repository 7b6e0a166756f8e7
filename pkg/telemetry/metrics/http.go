package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks API request handling.
//
// Metrics:
//   - fractal_http_requests_total: request count by method, route, status
//   - fractal_http_request_duration_seconds: request duration histogram
type HTTPMetrics struct {
	enabled bool

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP metrics with the provided
// registry.
func NewHTTPMetrics(cfg *Config, registry *prometheus.Registry) *HTTPMetrics {
	hm := &HTTPMetrics{
		enabled: cfg.Enabled,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of API requests handled",
			},
			[]string{"method", "route", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(hm.requestsTotal, hm.requestDuration)

	return hm
}

// RecordRequest records a completed API request. The route label is the
// registered pattern, not the raw URL, to bound cardinality.
func (hm *HTTPMetrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if !hm.enabled {
		return
	}
	hm.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	hm.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
