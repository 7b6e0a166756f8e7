package outcomes

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory map. Intended for
// tests and ephemeral deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*Snapshot),
	}
}

// Insert stores a new snapshot.
func (s *MemoryStore) Insert(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *snap
	s.snapshots[snap.ID] = &cp
	return nil
}

// InsertBatch stores many snapshots in one operation.
func (s *MemoryStore) InsertBatch(ctx context.Context, snaps []*Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snaps {
		cp := *snap
		s.snapshots[snap.ID] = &cp
	}
	return nil
}

// List returns snapshots matching the filter, newest first.
func (s *MemoryStore) List(ctx context.Context, f Filter) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Snapshot
	for _, snap := range s.snapshots {
		if matches(snap, f) {
			cp := *snap
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ListPending returns unresolved snapshots due for resolution.
func (s *MemoryStore) ListPending(ctx context.Context, symbol string, asOf time.Time) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Snapshot
	for _, snap := range s.snapshots {
		if snap.Symbol != symbol || snap.Resolved {
			continue
		}
		if snap.ResolveAt.After(asOf) {
			continue
		}
		cp := *snap
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ResolveAt.Before(out[j].ResolveAt)
	})
	return out, nil
}

// MarkResolved records the realized outcome for a snapshot.
func (s *MemoryStore) MarkResolved(ctx context.Context, id string, hit bool, realizedPrice float64, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return &NotFoundError{ID: id}
	}

	snap.Resolved = true
	snap.Hit = hit
	snap.RealizedPrice = realizedPrice
	snap.ResolvedAt = resolvedAt
	return nil
}

// Count returns the number of snapshots matching the filter.
func (s *MemoryStore) Count(ctx context.Context, f Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, snap := range s.snapshots {
		if matches(snap, f) {
			count++
		}
	}
	return count, nil
}

// DeleteBatch removes all snapshots belonging to a bootstrap batch.
func (s *MemoryStore) DeleteBatch(ctx context.Context, batchID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, snap := range s.snapshots {
		if snap.BatchID == batchID {
			delete(s.snapshots, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close releases resources held by the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[string]*Snapshot)
	return nil
}

func matches(snap *Snapshot, f Filter) bool {
	if f.Symbol != "" && snap.Symbol != f.Symbol {
		return false
	}
	if f.Source != "" && snap.Source != f.Source {
		return false
	}
	if f.ResolvedOnly && !snap.Resolved {
		return false
	}
	if !f.Since.IsZero() && snap.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}
