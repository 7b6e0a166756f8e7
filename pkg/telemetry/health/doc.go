// Package health provides liveness and readiness probes for Fractal.
//
// The Checker aggregates per-component checks (store pings, scheduler
// state) into a readiness status, and the handlers expose the standard
// /healthz, /readyz, and /version endpoints.
package health
