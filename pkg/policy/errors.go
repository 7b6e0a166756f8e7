package policy

import "fmt"

// NotFoundError indicates that no policy has ever been seeded for the
// symbol.
type NotFoundError struct {
	Symbol string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no policy found for symbol %q", e.Symbol)
}

// StaleHashError is the optimistic-concurrency conflict: the live policy
// hash no longer matches the hash the caller read. The caller must
// re-read the current policy and retry or abort.
type StaleHashError struct {
	Symbol       string
	ExpectedHash string
	CurrentHash  string
}

// Error implements the error interface.
func (e *StaleHashError) Error() string {
	return fmt.Sprintf("stale policy hash for symbol %q: expected %s, current %s",
		e.Symbol, short(e.ExpectedHash), short(e.CurrentHash))
}

// StorageError wraps a failure from the storage backend.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("policy storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
