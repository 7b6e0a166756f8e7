// Package metrics provides Prometheus metrics for Fractal.
//
// The Collector owns the registry and two metric subsystems: governance
// lifecycle counters (proposals, applies, rejections, rollbacks, lock
// denials, integrity faults) and HTTP request metrics for the API server.
// GovernanceMetrics satisfies the governance.Metrics interface so the
// service records lifecycle events without importing Prometheus.
package metrics
