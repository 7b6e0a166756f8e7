package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Enabled controls whether metrics are recorded. When disabled, all
	// recording methods are no-ops.
	Enabled bool

	// Namespace is the Prometheus metric namespace.
	// Default: "fractal"
	Namespace string

	// RequestDurationBuckets are the histogram buckets for request and
	// apply durations, in seconds.
	RequestDurationBuckets []float64
}

// Collector owns the Prometheus registry and all metric subsystems. It
// registers the standard Go runtime and process collectors alongside the
// governance and HTTP metrics.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	// Governance metrics track the proposal lifecycle.
	Governance *GovernanceMetrics

	// HTTP metrics track API request handling.
	HTTP *HTTPMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// registry is created.
func NewCollector(cfg *Config, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &Config{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "fractal"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		// Governance operations are store-bound, not network-bound.
		cfg.RequestDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0}
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		config:     cfg,
		registry:   registry,
		Governance: NewGovernanceMetrics(cfg, registry),
		HTTP:       NewHTTPMetrics(cfg, registry),
	}
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
