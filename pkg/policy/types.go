package policy

import (
	"context"
	"time"
)

// Tier names used in TierWeights.
const (
	TierStructure = "STRUCTURE"
	TierTactical  = "TACTICAL"
	TierTiming    = "TIMING"
)

// Volatility regime names used in RegimeMultipliers.
const (
	RegimeLow       = "LOW"
	RegimeNormal    = "NORMAL"
	RegimeHigh      = "HIGH"
	RegimeExpansion = "EXPANSION"
	RegimeCrisis    = "CRISIS"
)

// Weights is the content of a policy document: the full set of weight
// multipliers applied by the scoring model. The hash of a policy is
// computed over this content and nothing else.
type Weights struct {
	// TierWeights blends the STRUCTURE/TACTICAL/TIMING tier scores.
	TierWeights map[string]float64 `json:"tierWeights"`

	// HorizonWeights blends forecasts across resolution horizons ("1d",
	// "7d", "30d").
	HorizonWeights map[string]float64 `json:"horizonWeights"`

	// RegimeMultipliers scale confidence per volatility regime.
	RegimeMultipliers map[string]float64 `json:"regimeMultipliers"`

	// DivergencePenalties discount confidence per divergence grade
	// (NONE/MILD/MODERATE/SEVERE).
	DivergencePenalties map[string]float64 `json:"divergencePenalties"`

	// PhaseGradeMultipliers scale confidence per market-phase grade
	// (A/B/C/D).
	PhaseGradeMultipliers map[string]float64 `json:"phaseGradeMultipliers"`
}

// Clone returns a deep copy of the weights. Stores hand out clones so
// callers can never mutate persisted state in place.
func (w Weights) Clone() Weights {
	return Weights{
		TierWeights:           cloneMap(w.TierWeights),
		HorizonWeights:        cloneMap(w.HorizonWeights),
		RegimeMultipliers:     cloneMap(w.RegimeMultipliers),
		DivergencePenalties:   cloneMap(w.DivergencePenalties),
		PhaseGradeMultipliers: cloneMap(w.PhaseGradeMultipliers),
	}
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Policy is one version of the active scoring policy for a symbol.
// Version increases by exactly one on each successful replacement and
// Hash is always recomputed from Content on write.
type Policy struct {
	Symbol    string    `json:"symbol"`
	Version   int64     `json:"version"`
	Content   Weights   `json:"content"`
	Hash      string    `json:"hash"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the policy.
func (p *Policy) Clone() *Policy {
	cp := *p
	cp.Content = p.Content.Clone()
	return &cp
}

// Store is the versioned policy store. Implementations must be safe for
// concurrent use; Replace must be atomic with respect to concurrent
// Replace calls for the same symbol.
type Store interface {
	// GetCurrent returns the active policy for the symbol, or a
	// NotFoundError if the symbol has never been seeded.
	GetCurrent(ctx context.Context, symbol string) (*Policy, error)

	// Seed installs version 1 for a symbol that has no policy yet. If a
	// policy already exists, the existing current policy is returned
	// unchanged.
	Seed(ctx context.Context, symbol string, content Weights, actor string) (*Policy, error)

	// Replace atomically swaps the active policy if and only if the
	// current hash equals expectedHash. On mismatch it returns a
	// StaleHashError; on success it returns the new policy with version
	// incremented and hash recomputed from content.
	Replace(ctx context.Context, symbol, expectedHash string, content Weights, actor, reason string) (*Policy, error)

	// History returns policy versions for the symbol, newest first.
	// limit <= 0 returns the full history.
	History(ctx context.Context, symbol string, limit int) ([]*Policy, error)

	// Close releases resources held by the store.
	Close() error
}
