package governance

import (
	"context"
	"time"

	"spxcore/fractal/pkg/drift"
	"spxcore/fractal/pkg/learning"
	"spxcore/fractal/pkg/outcomes"
	"spxcore/fractal/pkg/policy"
	"spxcore/fractal/pkg/simulation"
)

// Status is the proposal lifecycle state. The set is closed: a proposal
// is created PROPOSED and moves to exactly one terminal state.
type Status string

const (
	StatusProposed Status = "PROPOSED"
	StatusApplied  Status = "APPLIED"
	StatusRejected Status = "REJECTED"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusProposed, StatusApplied, StatusRejected:
		return true
	}
	return false
}

// canTransition enumerates the allowed lifecycle edges. Anything not
// listed here is an InvalidTransitionError; in particular no state ever
// re-enters PROPOSED.
func (s Status) canTransition(to Status) bool {
	switch s {
	case StatusProposed:
		return to == StatusApplied || to == StatusRejected
	case StatusApplied, StatusRejected:
		return false
	}
	return false
}

// Verdict is the engine's recommendation for a proposal.
type Verdict string

const (
	VerdictHold     Verdict = "HOLD"
	VerdictTune     Verdict = "TUNE"
	VerdictRollback Verdict = "ROLLBACK"
)

// Risk grades a proposal by delta magnitude and gate outcomes.
type Risk string

const (
	RiskLow  Risk = "LOW"
	RiskMed  Risk = "MED"
	RiskHigh Risk = "HIGH"
)

// Scope identifies the slice of data a proposal was computed from.
type Scope struct {
	Preset     string `json:"preset"` // conservative | balanced | aggressive
	Role       string `json:"role"`   // ACTIVE | SHADOW
	Focus      string `json:"focus,omitempty"`
	WindowDays int    `json:"windowDays"`
}

// Delta is one field-level weight change, ordered by field path.
type Delta struct {
	Field string  `json:"field"` // e.g. "tierWeights.STRUCTURE"
	From  float64 `json:"from"`
	To    float64 `json:"to"`
}

// Guardrails records the proposal-creation quality gates. These are
// evaluated from the learning vector's own eligibility signals and are
// independent of the apply-time governance lock.
type Guardrails struct {
	Eligible bool            `json:"eligible"`
	Reasons  []string        `json:"reasons"`
	Checks   map[string]bool `json:"checks"`
}

// Proposal is a candidate policy change. Immutable after creation except
// for its lifecycle fields (status, rejection, applied time).
type Proposal struct {
	ID     string          `json:"id"`
	Symbol string          `json:"symbol"`
	Source outcomes.Source `json:"source"`
	Scope  Scope           `json:"scope"`
	Status Status          `json:"status"`

	Verdict        Verdict `json:"verdict"`
	Risk           Risk    `json:"risk"`
	Summary        string  `json:"summary"`
	ExpectedImpact float64 `json:"expectedImpact"`

	Deltas     []Delta            `json:"deltas"`
	Guardrails Guardrails         `json:"guardrails"`
	Simulation *simulation.Result `json:"simulation"`

	// ContractHash is the policy schema digest the proposal was built
	// against. The lock refuses applies when it no longer matches.
	ContractHash string `json:"contractHash"`

	// Full snapshots, not references: audit must survive the live policy
	// moving on.
	CurrentPolicy  *policy.Policy `json:"currentPolicy"`
	ProposedPolicy policy.Weights `json:"proposedPolicy"`
	ProposedHash   string         `json:"proposedHash"`

	CreatedAt      time.Time  `json:"createdAt"`
	AppliedAt      *time.Time `json:"appliedAt,omitempty"`
	RejectedAt     *time.Time `json:"rejectedAt,omitempty"`
	RejectedBy     string     `json:"rejectedBy,omitempty"`
	RejectedReason string     `json:"rejectedReason,omitempty"`
}

// Clone returns a deep copy of the proposal.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	out := *p
	out.Deltas = append([]Delta(nil), p.Deltas...)
	out.Guardrails.Reasons = append([]string(nil), p.Guardrails.Reasons...)
	if p.Guardrails.Checks != nil {
		out.Guardrails.Checks = make(map[string]bool, len(p.Guardrails.Checks))
		for k, v := range p.Guardrails.Checks {
			out.Guardrails.Checks[k] = v
		}
	}
	if p.Simulation != nil {
		sim := *p.Simulation
		sim.Notes = append([]string(nil), p.Simulation.Notes...)
		if p.Simulation.Metrics != nil {
			sim.Metrics = make(map[string]float64, len(p.Simulation.Metrics))
			for k, v := range p.Simulation.Metrics {
				sim.Metrics[k] = v
			}
		}
		out.Simulation = &sim
	}
	out.CurrentPolicy = p.CurrentPolicy.Clone()
	out.ProposedPolicy = p.ProposedPolicy.Clone()
	if p.AppliedAt != nil {
		at := *p.AppliedAt
		out.AppliedAt = &at
	}
	if p.RejectedAt != nil {
		at := *p.RejectedAt
		out.RejectedAt = &at
	}
	return &out
}

// Application is one append-only ledger entry: a policy replacement that
// actually happened. PreviousPolicyHash witnesses the pre-mutation
// state; entries chain hash-to-hash per symbol.
type Application struct {
	ID                 string    `json:"id"`
	ProposalID         string    `json:"proposalId"`
	Symbol             string    `json:"symbol"`
	AppliedAt          time.Time `json:"appliedAt"`
	AppliedBy          string    `json:"appliedBy"`
	Reason             string    `json:"reason"`
	PreviousPolicyHash string    `json:"previousPolicyHash"`
	NewPolicyHash      string    `json:"newPolicyHash"`

	// RollbackOf is set when this entry reverts an earlier application.
	RollbackOf string `json:"rollbackOf,omitempty"`
}

// LockSignals are the live eligibility inputs to the governance lock.
type LockSignals struct {
	LiveSamples       int
	DriftSeverity     drift.Severity
	ContractHashMatch bool
	ProposalSource    outcomes.Source
}

// LockStatus is the lock's decision, computed on demand and never
// persisted.
type LockStatus struct {
	LiveSamples       int             `json:"liveSamples"`
	MinRequired       int             `json:"minRequired"`
	DriftSeverity     drift.Severity  `json:"driftSeverity"`
	ContractHashMatch bool            `json:"contractHashMatch"`
	IsLiveOnly        bool            `json:"isLiveOnly"`
	ProposalSource    outcomes.Source `json:"proposalSource"`
	CanApply          bool            `json:"canApply"`
	Reasons           []string        `json:"reasons"`
}

// LearningSource computes learning vectors. Implemented by
// learning.Aggregator.
type LearningSource interface {
	ComputeVector(ctx context.Context, q learning.Query) (*learning.Vector, error)
}

// DriftSource grades cohort divergence. Implemented by drift.Comparator.
type DriftSource interface {
	CompareCohorts(ctx context.Context, symbol string, windowDays int) (*drift.Report, error)
}

// SampleCounter supplies the resolved LIVE sample count. Implemented by
// outcomes.Resolver.
type SampleCounter interface {
	LiveSampleCount(ctx context.Context, symbol string) (int, error)
}

// Simulator validates a candidate policy against the baseline.
// Implemented by simulation.Replayer.
type Simulator interface {
	Simulate(ctx context.Context, symbol string, baseline, candidate policy.Weights, windowDays int) (*simulation.Result, error)
}

// ProposalFilter selects proposals for listing.
type ProposalFilter struct {
	Symbol string
	Status Status // empty matches all
	Limit  int
}

// Stats summarizes proposals for a symbol. The byStatus counts always
// sum to Total.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"byStatus"`
	BySource map[string]int `json:"bySource"`
}

// ProposalStore persists proposals and enforces lifecycle transitions.
// Implementations must be safe for concurrent use.
type ProposalStore interface {
	// Create persists a new proposal. The proposal must be PROPOSED.
	Create(ctx context.Context, p *Proposal) error

	// GetByID returns the proposal or a NotFoundError.
	GetByID(ctx context.Context, id string) (*Proposal, error)

	// List returns proposals matching the filter, newest first, plus the
	// total matching count before the limit was applied.
	List(ctx context.Context, f ProposalFilter) ([]*Proposal, int, error)

	// Latest returns the most recent PROPOSED or APPLIED proposal for
	// the symbol and source, or nil when none exists.
	Latest(ctx context.Context, symbol string, source outcomes.Source) (*Proposal, error)

	// Reject moves a PROPOSED proposal to REJECTED and records the actor
	// and reason. Any other starting status is an InvalidTransitionError.
	Reject(ctx context.Context, id, reason, actor string) (*Proposal, error)

	// MarkApplied moves a PROPOSED proposal to APPLIED. Called only by
	// the governance service after a successful policy replacement.
	MarkApplied(ctx context.Context, id string, at time.Time) (*Proposal, error)

	// Stats returns proposal counts for the symbol.
	Stats(ctx context.Context, symbol string) (*Stats, error)

	// Close releases resources held by the store.
	Close() error
}

// LedgerStore is the storage backend behind the application ledger.
// Strictly append-only: no update, no delete.
type LedgerStore interface {
	// Append persists a new application entry.
	Append(ctx context.Context, app *Application) error

	// GetByID returns the application or a NotFoundError.
	GetByID(ctx context.Context, id string) (*Application, error)

	// List returns applications for the symbol, newest first, plus the
	// total count before the limit was applied.
	List(ctx context.Context, symbol string, limit int) ([]*Application, int, error)

	// Latest returns the most recent application for the symbol, or nil
	// when the ledger is empty for it.
	Latest(ctx context.Context, symbol string) (*Application, error)

	// Close releases resources held by the store.
	Close() error
}
