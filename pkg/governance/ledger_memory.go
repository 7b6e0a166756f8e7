package governance

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedgerStore implements LedgerStore using in-memory slices. It is
// intended for tests and ephemeral deployments.
type MemoryLedgerStore struct {
	mu       sync.RWMutex
	byID     map[string]*Application
	bySymbol map[string][]*Application // oldest first
}

// NewMemoryLedgerStore creates a new in-memory ledger store.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		byID:     make(map[string]*Application),
		bySymbol: make(map[string][]*Application),
	}
}

// Append persists a new application entry.
func (s *MemoryLedgerStore) Append(ctx context.Context, app *Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[app.ID]; exists {
		return NewStorageError("memory", "append", fmt.Errorf("application %q already exists", app.ID))
	}
	entry := *app
	s.byID[app.ID] = &entry
	s.bySymbol[app.Symbol] = append(s.bySymbol[app.Symbol], &entry)
	return nil
}

// GetByID returns the application or a NotFoundError.
func (s *MemoryLedgerStore) GetByID(ctx context.Context, id string) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.byID[id]
	if !ok {
		return nil, &NotFoundError{Entity: "application", ID: id}
	}
	out := *app
	return &out, nil
}

// List returns applications for the symbol, newest first.
func (s *MemoryLedgerStore) List(ctx context.Context, symbol string, limit int) ([]*Application, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.bySymbol[symbol]
	total := len(entries)

	out := make([]*Application, 0, total)
	for i := total - 1; i >= 0; i-- {
		entry := *entries[i]
		out = append(out, &entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, total, nil
}

// Latest returns the most recent application for the symbol, or nil when
// the ledger is empty for it.
func (s *MemoryLedgerStore) Latest(ctx context.Context, symbol string) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.bySymbol[symbol]
	if len(entries) == 0 {
		return nil, nil
	}
	out := *entries[len(entries)-1]
	return &out, nil
}

// Close releases resources held by the store.
func (s *MemoryLedgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Application)
	s.bySymbol = make(map[string][]*Application)
	return nil
}
