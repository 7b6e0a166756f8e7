// Package policy owns the active scoring policy document for each symbol.
//
// A policy is a set of tier/regime/phase weight multipliers driving the
// forecasting model. Exactly one policy is active per symbol at any time.
// Policies are versioned: every successful replacement (apply or rollback)
// increments the version by one and recomputes the content hash.
//
// Replacement uses optimistic concurrency: callers pass the hash of the
// policy they read, and the swap only happens if the live policy still
// carries that hash. A mismatch surfaces as StaleHashError and the caller
// must re-read and re-propose.
//
// Two store backends are provided: an in-memory store for tests and an
// SQLite store for durable single-instance deployments.
package policy
