package outcomes

import (
	"context"
	"fmt"
	"time"
)

// Source identifies the dataset cohort a snapshot was produced from.
type Source string

// Known cohorts. LIVE is the only cohort eligible for governance
// applies; the rest exist for learning and drift comparison.
const (
	SourceLive      Source = "LIVE"
	SourceV2020     Source = "V2020"
	SourceV2014     Source = "V2014"
	SourceBootstrap Source = "BOOTSTRAP"
)

// Valid reports whether the source is one of the known cohorts.
func (s Source) Valid() bool {
	switch s {
	case SourceLive, SourceV2020, SourceV2014, SourceBootstrap:
		return true
	}
	return false
}

// Direction is the forecast direction of a snapshot.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Snapshot is one stored forecast plus its resolution state. A snapshot
// is created PENDING and becomes resolved once realized price action is
// available at its resolution time.
type Snapshot struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Source     Source    `json:"source"`
	BatchID    string    `json:"batchId,omitempty"` // set for bootstrap backfills
	Tier       string    `json:"tier"`              // STRUCTURE | TACTICAL | TIMING
	Regime     string    `json:"regime"`            // LOW | NORMAL | HIGH | EXPANSION | CRISIS
	PhaseGrade string    `json:"phaseGrade"`        // A | B | C | D
	Divergence string    `json:"divergence"`        // NONE | MILD | MODERATE | SEVERE
	Horizon    string    `json:"horizon"`           // 1d | 7d | 30d
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // 0..1
	EntryPrice float64   `json:"entryPrice"`
	CreatedAt  time.Time `json:"createdAt"`
	ResolveAt  time.Time `json:"resolveAt"`

	// Resolution fields, zero until resolved.
	Resolved      bool      `json:"resolved"`
	Hit           bool      `json:"hit"`
	RealizedPrice float64   `json:"realizedPrice,omitempty"`
	ResolvedAt    time.Time `json:"resolvedAt,omitempty"`
}

// Filter selects snapshots for listing and counting.
type Filter struct {
	Symbol       string
	Source       Source // empty matches all cohorts
	ResolvedOnly bool
	Since        time.Time // zero matches all time
	Limit        int
}

// Store persists forecast snapshots. Implementations must be safe for
// concurrent use.
type Store interface {
	// Insert stores a new snapshot.
	Insert(ctx context.Context, snap *Snapshot) error

	// InsertBatch stores many snapshots in one operation.
	InsertBatch(ctx context.Context, snaps []*Snapshot) error

	// List returns snapshots matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]*Snapshot, error)

	// ListPending returns unresolved snapshots whose ResolveAt is at or
	// before the given time.
	ListPending(ctx context.Context, symbol string, asOf time.Time) ([]*Snapshot, error)

	// MarkResolved records the realized outcome for a snapshot.
	MarkResolved(ctx context.Context, id string, hit bool, realizedPrice float64, resolvedAt time.Time) error

	// Count returns the number of snapshots matching the filter.
	Count(ctx context.Context, f Filter) (int, error)

	// DeleteBatch removes all snapshots belonging to a bootstrap batch.
	// Returns the number of snapshots removed.
	DeleteBatch(ctx context.Context, batchID string) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// NotFoundError indicates the snapshot does not exist.
type NotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snapshot %q not found", e.ID)
}

// StorageError wraps a failure from the storage backend.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("outcomes storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
