package policy

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory maps. It is intended for
// tests and ephemeral deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]*Policy // per symbol, oldest first
}

// NewMemoryStore creates a new in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions: make(map[string][]*Policy),
	}
}

// GetCurrent returns the active policy for the symbol.
func (s *MemoryStore) GetCurrent(ctx context.Context, symbol string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[symbol]
	if len(history) == 0 {
		return nil, &NotFoundError{Symbol: symbol}
	}
	return history[len(history)-1].Clone(), nil
}

// Seed installs version 1 for a symbol with no policy. Seeding an
// already-seeded symbol returns the existing current policy.
func (s *MemoryStore) Seed(ctx context.Context, symbol string, content Weights, actor string) (*Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if history := s.versions[symbol]; len(history) > 0 {
		return history[len(history)-1].Clone(), nil
	}

	p := &Policy{
		Symbol:    symbol,
		Version:   1,
		Content:   content.Clone(),
		Hash:      HashWeights(content),
		Actor:     actor,
		Reason:    "seed default policy",
		UpdatedAt: time.Now().UTC(),
	}
	s.versions[symbol] = append(s.versions[symbol], p)
	return p.Clone(), nil
}

// Replace atomically swaps the active policy under the store lock.
func (s *MemoryStore) Replace(ctx context.Context, symbol, expectedHash string, content Weights, actor, reason string) (*Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.versions[symbol]
	if len(history) == 0 {
		return nil, &NotFoundError{Symbol: symbol}
	}

	current := history[len(history)-1]
	if current.Hash != expectedHash {
		return nil, &StaleHashError{
			Symbol:       symbol,
			ExpectedHash: expectedHash,
			CurrentHash:  current.Hash,
		}
	}

	p := &Policy{
		Symbol:    symbol,
		Version:   current.Version + 1,
		Content:   content.Clone(),
		Hash:      HashWeights(content),
		Actor:     actor,
		Reason:    reason,
		UpdatedAt: time.Now().UTC(),
	}
	s.versions[symbol] = append(s.versions[symbol], p)
	return p.Clone(), nil
}

// History returns policy versions newest first.
func (s *MemoryStore) History(ctx context.Context, symbol string, limit int) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[symbol]
	out := make([]*Policy, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i].Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close releases resources held by the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = make(map[string][]*Policy)
	return nil
}
