package governance

import (
	"fmt"
	"strings"
)

// NotFoundError indicates the entity does not exist.
type NotFoundError struct {
	Entity string // "proposal" | "application"
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// InvalidTransitionError indicates a lifecycle precondition was violated,
// such as rejecting an already-applied proposal.
type InvalidTransitionError struct {
	ProposalID string
	From       Status
	To         Status
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for proposal %q: %s -> %s", e.ProposalID, e.From, e.To)
}

// GovernanceLockedError indicates the apply was blocked by the
// governance lock. It carries the structured reasons so callers can
// branch on them; the condition is expected and always safe to retry
// once the signals change.
type GovernanceLockedError struct {
	Symbol  string
	Status  *LockStatus
	Reasons []string
}

// Error implements the error interface.
func (e *GovernanceLockedError) Error() string {
	return fmt.Sprintf("governance locked for symbol %q: %s", e.Symbol, strings.Join(e.Reasons, "; "))
}

// AlreadyRolledBackError indicates the application is not the latest for
// its symbol and therefore can no longer be rolled back; only the most
// recent application may be reverted.
type AlreadyRolledBackError struct {
	ApplicationID string
	LatestID      string
}

// Error implements the error interface.
func (e *AlreadyRolledBackError) Error() string {
	return fmt.Sprintf("application %q is not the latest for its symbol (latest is %q); only the most recent application may be rolled back",
		e.ApplicationID, e.LatestID)
}

// IntegrityFaultError indicates a post-mutation step failed or an
// invariant check between the policy store and the ledger broke. It is
// not locally recoverable: automated applies for the symbol halt until
// the fault is manually cleared.
type IntegrityFaultError struct {
	Symbol string
	Stage  string // step that failed, e.g. "mark_applied", "ledger_append"
	Cause  error
}

// Error implements the error interface.
func (e *IntegrityFaultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("integrity fault for symbol %q at %s: %v", e.Symbol, e.Stage, e.Cause)
	}
	return fmt.Sprintf("integrity fault for symbol %q at %s", e.Symbol, e.Stage)
}

// Unwrap returns the underlying cause error.
func (e *IntegrityFaultError) Unwrap() error {
	return e.Cause
}

// SimulationUnavailableError indicates the simulation could not run
// (timeout, cancellation, backend failure). A proposal can never be
// created with an unknown simulation verdict.
type SimulationUnavailableError struct {
	Symbol string
	Cause  error
}

// Error implements the error interface.
func (e *SimulationUnavailableError) Error() string {
	return fmt.Sprintf("simulation unavailable for symbol %q: %v", e.Symbol, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SimulationUnavailableError) Unwrap() error {
	return e.Cause
}

// StorageError wraps a failure from a governance storage backend.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("governance storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
