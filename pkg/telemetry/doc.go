// Package telemetry groups the observability subsystems for Fractal:
// structured logging (logging), Prometheus metrics (metrics), and health
// checks (health).
package telemetry
