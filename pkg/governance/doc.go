// Package governance implements the policy governance and proposal
// lifecycle engine.
//
// A proposal is built by the engine from a learning vector and the live
// policy, persisted PROPOSED, and either rejected or applied. Applying
// is gated twice: the proposal's own guardrails at creation time, and
// the governance lock at apply time (live-sample floor, drift severity,
// contract compatibility, live-only cohort). A successful apply swaps
// the policy through a hash-guarded compare-and-swap and appends an
// entry to the application ledger; the ledger's hash chain makes every
// transition reconstructible and drives rollback, which is itself an
// audited apply rather than a destructive edit.
//
// Concurrency: apply and rollback serialize per symbol; proposal
// creation and all reads run in parallel with them.
package governance
