package governance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"spxcore/fractal/pkg/outcomes"
)

// MemoryProposalStore implements ProposalStore using in-memory maps. It
// is intended for tests and ephemeral deployments.
type MemoryProposalStore struct {
	mu       sync.RWMutex
	byID     map[string]*Proposal
	bySymbol map[string][]string // proposal IDs, oldest first
}

// NewMemoryProposalStore creates a new in-memory proposal store.
func NewMemoryProposalStore() *MemoryProposalStore {
	return &MemoryProposalStore{
		byID:     make(map[string]*Proposal),
		bySymbol: make(map[string][]string),
	}
}

// Create persists a new proposal.
func (s *MemoryProposalStore) Create(ctx context.Context, p *Proposal) error {
	if p.Status != StatusProposed {
		return &InvalidTransitionError{ProposalID: p.ID, From: p.Status, To: StatusProposed}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[p.ID]; exists {
		return NewStorageError("memory", "create", fmt.Errorf("proposal %q already exists", p.ID))
	}
	s.byID[p.ID] = p.Clone()
	s.bySymbol[p.Symbol] = append(s.bySymbol[p.Symbol], p.ID)
	return nil
}

// GetByID returns the proposal or a NotFoundError.
func (s *MemoryProposalStore) GetByID(ctx context.Context, id string) (*Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, &NotFoundError{Entity: "proposal", ID: id}
	}
	return p.Clone(), nil
}

// List returns proposals matching the filter, newest first.
func (s *MemoryProposalStore) List(ctx context.Context, f ProposalFilter) ([]*Proposal, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Proposal
	for _, p := range s.byID {
		if f.Symbol != "" && p.Symbol != f.Symbol {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		matched = append(matched, p)
	}

	sortProposalsNewestFirst(matched)

	total := len(matched)
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	out := make([]*Proposal, 0, len(matched))
	for _, p := range matched {
		out = append(out, p.Clone())
	}
	return out, total, nil
}

// Latest returns the most recent PROPOSED or APPLIED proposal for the
// symbol and source, or nil when none exists.
func (s *MemoryProposalStore) Latest(ctx context.Context, symbol string, source outcomes.Source) (*Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySymbol[symbol]
	for i := len(ids) - 1; i >= 0; i-- {
		p := s.byID[ids[i]]
		if p.Source != source {
			continue
		}
		if p.Status == StatusProposed || p.Status == StatusApplied {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

// Reject moves a PROPOSED proposal to REJECTED.
func (s *MemoryProposalStore) Reject(ctx context.Context, id, reason, actor string) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, &NotFoundError{Entity: "proposal", ID: id}
	}
	if !p.Status.canTransition(StatusRejected) {
		return nil, &InvalidTransitionError{ProposalID: id, From: p.Status, To: StatusRejected}
	}

	at := time.Now().UTC()
	p.Status = StatusRejected
	p.RejectedAt = &at
	p.RejectedBy = actor
	p.RejectedReason = reason
	return p.Clone(), nil
}

// MarkApplied moves a PROPOSED proposal to APPLIED.
func (s *MemoryProposalStore) MarkApplied(ctx context.Context, id string, at time.Time) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, &NotFoundError{Entity: "proposal", ID: id}
	}
	if !p.Status.canTransition(StatusApplied) {
		return nil, &InvalidTransitionError{ProposalID: id, From: p.Status, To: StatusApplied}
	}

	applied := at.UTC()
	p.Status = StatusApplied
	p.AppliedAt = &applied
	return p.Clone(), nil
}

// Stats returns proposal counts for the symbol.
func (s *MemoryProposalStore) Stats(ctx context.Context, symbol string) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		ByStatus: make(map[Status]int),
		BySource: make(map[string]int),
	}
	for _, id := range s.bySymbol[symbol] {
		p := s.byID[id]
		stats.Total++
		stats.ByStatus[p.Status]++
		stats.BySource[string(p.Source)]++
	}
	return stats, nil
}

// Close releases resources held by the store.
func (s *MemoryProposalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Proposal)
	s.bySymbol = make(map[string][]string)
	return nil
}

func sortProposalsNewestFirst(ps []*Proposal) {
	sort.Slice(ps, func(i, j int) bool {
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}
