// Package server provides the HTTP API for the governance service.
//
// All API responses share a single envelope: successful responses carry
// {"ok": true, "data": ...} and failures carry {"ok": false, "error":
// {"code", "message", "details"}}. Domain errors map to stable machine
// codes (STALE_HASH, GOVERNANCE_LOCKED, INVALID_TRANSITION, and so on) so
// clients can branch without parsing messages.
//
// The server also exposes operational endpoints outside the API prefix:
// /healthz, /readyz, /version, and the Prometheus metrics endpoint.
package server
