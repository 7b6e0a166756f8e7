package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"spxcore/fractal/pkg/drift"
	"spxcore/fractal/pkg/learning"
	"spxcore/fractal/pkg/outcomes"
	"spxcore/fractal/pkg/policy"
)

// Metrics receives governance lifecycle events. The telemetry package
// provides the Prometheus implementation; the zero value of the service
// uses a no-op.
type Metrics interface {
	ProposalCreated(symbol string, verdict Verdict, risk Risk)
	ProposalApplied(symbol string)
	ProposalRejected(symbol string)
	RollbackPerformed(symbol string)
	LockDenied(symbol string, reasons int)
	IntegrityFault(symbol string)
}

type noopMetrics struct{}

func (noopMetrics) ProposalCreated(string, Verdict, Risk) {}
func (noopMetrics) ProposalApplied(string)                {}
func (noopMetrics) ProposalRejected(string)               {}
func (noopMetrics) RollbackPerformed(string)              {}
func (noopMetrics) LockDenied(string, int)                {}
func (noopMetrics) IntegrityFault(string)                 {}

// ServiceConfig wires the service's stores and collaborators.
type ServiceConfig struct {
	Policies  policy.Store
	Proposals ProposalStore
	Ledger    *Ledger
	Engine    *Engine
	Learning  LearningSource
	Drift     DriftSource
	Samples   SampleCounter

	// Metrics is optional; nil means no-op.
	Metrics Metrics

	// DefaultWindowDays is used when a scope omits the window.
	// Default: 90
	DefaultWindowDays int
}

// Service is the governance orchestrator. All writes for a symbol
// serialize on a per-symbol mutex; an integrity fault on a symbol halts
// further applies and rollbacks for it until explicitly cleared.
type Service struct {
	config ServiceConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	faultMu sync.RWMutex
	faults  map[string]string

	metrics Metrics
	logger  *slog.Logger
}

// NewService creates a governance service.
func NewService(config ServiceConfig) *Service {
	if config.DefaultWindowDays <= 0 {
		config.DefaultWindowDays = 90
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		config:  config,
		locks:   make(map[string]*sync.Mutex),
		faults:  make(map[string]string),
		metrics: metrics,
		logger:  slog.Default().With("component", "governance.service"),
	}
}

// symbolLock returns the mutex serializing writes for the symbol.
func (s *Service) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[symbol] = lock
	}
	return lock
}

// CurrentPolicy returns the active policy for the symbol, seeding the
// defaults on first access.
func (s *Service) CurrentPolicy(ctx context.Context, symbol string) (*policy.Policy, error) {
	p, err := s.config.Policies.GetCurrent(ctx, symbol)
	var notFound *policy.NotFoundError
	if errors.As(err, &notFound) {
		return s.config.Policies.Seed(ctx, symbol, policy.DefaultWeights(), "system")
	}
	return p, err
}

// PolicyHistory returns policy versions for the symbol, newest first.
func (s *Service) PolicyHistory(ctx context.Context, symbol string, limit int) ([]*policy.Policy, error) {
	return s.config.Policies.History(ctx, symbol, limit)
}

// Propose computes a learning vector for the symbol and cohort, derives
// a candidate policy and persists the resulting proposal. Proposals may
// be generated from any source cohort; the apply gate is where the
// LIVE-only rule bites.
func (s *Service) Propose(ctx context.Context, symbol string, source outcomes.Source, scope Scope) (*Proposal, error) {
	if scope.WindowDays <= 0 {
		scope.WindowDays = s.config.DefaultWindowDays
	}

	current, err := s.CurrentPolicy(ctx, symbol)
	if err != nil {
		return nil, err
	}

	vector, err := s.config.Learning.ComputeVector(ctx, learning.Query{
		Symbol:     symbol,
		WindowDays: scope.WindowDays,
		Preset:     scope.Preset,
		Role:       scope.Role,
		Source:     source,
	})
	if err != nil {
		return nil, err
	}

	p, err := s.config.Engine.Propose(ctx, vector, current, scope)
	if err != nil {
		return nil, err
	}
	if err := s.config.Proposals.Create(ctx, p); err != nil {
		return nil, err
	}

	s.metrics.ProposalCreated(symbol, p.Verdict, p.Risk)
	return p, nil
}

// LockStatus evaluates the governance lock for a symbol and cohort as a
// read-only probe. With no concrete proposal in hand the contract check
// compares the schema against itself, so only the sample, drift and
// source conditions can fail here.
func (s *Service) LockStatus(ctx context.Context, symbol string, source outcomes.Source) (*LockStatus, error) {
	signals, err := s.lockSignals(ctx, symbol, source, policy.ContractHash())
	if err != nil {
		return nil, err
	}
	return EvaluateLock(*signals), nil
}

// LearningVector computes the attribution vector for a symbol and cohort
// without creating a proposal. A non-positive windowDays falls back to
// the service default.
func (s *Service) LearningVector(ctx context.Context, symbol string, source outcomes.Source, windowDays int) (*learning.Vector, error) {
	if windowDays <= 0 {
		windowDays = s.config.DefaultWindowDays
	}
	return s.config.Learning.ComputeVector(ctx, learning.Query{
		Symbol:     symbol,
		WindowDays: windowDays,
		Source:     source,
	})
}

// DriftReport grades cohort divergence for a symbol. A non-positive
// windowDays falls back to the service default.
func (s *Service) DriftReport(ctx context.Context, symbol string, windowDays int) (*drift.Report, error) {
	if windowDays <= 0 {
		windowDays = s.config.DefaultWindowDays
	}
	return s.config.Drift.CompareCohorts(ctx, symbol, windowDays)
}

// lockSignals gathers the live inputs to the governance lock.
func (s *Service) lockSignals(ctx context.Context, symbol string, source outcomes.Source, contractHash string) (*LockSignals, error) {
	liveSamples, err := s.config.Samples.LiveSampleCount(ctx, symbol)
	if err != nil {
		return nil, err
	}

	report, err := s.config.Drift.CompareCohorts(ctx, symbol, s.config.DefaultWindowDays)
	if err != nil {
		return nil, err
	}

	return &LockSignals{
		LiveSamples:       liveSamples,
		DriftSeverity:     report.Verdict.OverallSeverity,
		ContractHashMatch: contractHash == policy.ContractHash(),
		ProposalSource:    source,
	}, nil
}

// Apply applies a PROPOSED proposal: it re-evaluates the governance lock
// against live signals, swaps the policy with a hash-guarded CAS, marks
// the proposal applied and records the ledger entry. The reason is the
// operator's rationale, carried into the policy version and the ledger
// entry; when empty, a generated summary of the proposal is used. A
// failure after the policy swap is an integrity fault that halts the
// symbol.
func (s *Service) Apply(ctx context.Context, proposalID, actor, reason string) (*Application, *policy.Policy, error) {
	p, err := s.config.Proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != StatusProposed {
		return nil, nil, &InvalidTransitionError{ProposalID: p.ID, From: p.Status, To: StatusApplied}
	}

	lock := s.symbolLock(p.Symbol)
	lock.Lock()
	defer lock.Unlock()

	if err := s.checkFault(p.Symbol); err != nil {
		return nil, nil, err
	}

	if !p.Guardrails.Eligible {
		reasons := append([]string{"proposal failed its guardrails"}, p.Guardrails.Reasons...)
		s.metrics.LockDenied(p.Symbol, len(reasons))
		return nil, nil, &GovernanceLockedError{Symbol: p.Symbol, Reasons: reasons}
	}

	signals, err := s.lockSignals(ctx, p.Symbol, p.Source, p.ContractHash)
	if err != nil {
		return nil, nil, err
	}
	status := EvaluateLock(*signals)
	if !status.CanApply {
		s.metrics.LockDenied(p.Symbol, len(status.Reasons))
		return nil, nil, &GovernanceLockedError{Symbol: p.Symbol, Status: status, Reasons: status.Reasons}
	}

	if reason == "" {
		reason = fmt.Sprintf("apply proposal %s: %s", p.ID, p.Summary)
	}
	applied, err := s.config.Policies.Replace(ctx, p.Symbol, p.CurrentPolicy.Hash, p.ProposedPolicy, actor, reason)
	if err != nil {
		// Includes StaleHashError when the policy moved since the
		// proposal was built. Nothing has mutated; safe to surface.
		return nil, nil, err
	}

	now := time.Now().UTC()
	if _, err := s.config.Proposals.MarkApplied(ctx, p.ID, now); err != nil {
		return nil, nil, s.raiseFault(p.Symbol, "mark_applied", err)
	}

	entry := &Application{
		ID:                 uuid.NewString(),
		ProposalID:         p.ID,
		Symbol:             p.Symbol,
		AppliedAt:          now,
		AppliedBy:          actor,
		Reason:             reason,
		PreviousPolicyHash: p.CurrentPolicy.Hash,
		NewPolicyHash:      applied.Hash,
	}
	if err := s.config.Ledger.Record(ctx, entry); err != nil {
		return nil, nil, s.raiseFault(p.Symbol, "ledger_append", err)
	}

	s.metrics.ProposalApplied(p.Symbol)
	s.logger.Info("proposal applied",
		"proposal_id", p.ID,
		"symbol", p.Symbol,
		"actor", actor,
		"new_version", applied.Version,
	)
	return entry, applied, nil
}

// Reject rejects a PROPOSED proposal.
func (s *Service) Reject(ctx context.Context, proposalID, reason, actor string) (*Proposal, error) {
	p, err := s.config.Proposals.Reject(ctx, proposalID, reason, actor)
	if err != nil {
		return nil, err
	}
	s.metrics.ProposalRejected(p.Symbol)
	s.logger.Info("proposal rejected", "proposal_id", p.ID, "symbol", p.Symbol, "actor", actor)
	return p, nil
}

// Rollback reverts the most recent application for its symbol. The
// reverted proposal keeps its APPLIED status; the rollback is a new
// ledger entry, not history rewriting. The reason is the operator's
// rationale; when empty, a generated summary is recorded instead.
func (s *Service) Rollback(ctx context.Context, applicationID, actor, reason string) (*Application, *policy.Policy, error) {
	app, err := s.config.Ledger.GetByID(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}

	lock := s.symbolLock(app.Symbol)
	lock.Lock()
	defer lock.Unlock()

	if err := s.checkFault(app.Symbol); err != nil {
		return nil, nil, err
	}

	entry, restored, err := s.config.Ledger.Rollback(ctx, applicationID, actor, reason)
	if err != nil {
		var fault *IntegrityFaultError
		if errors.As(err, &fault) && fault.Stage == "rollback_append" {
			return nil, nil, s.raiseFault(app.Symbol, fault.Stage, fault.Cause)
		}
		return nil, nil, err
	}

	s.metrics.RollbackPerformed(app.Symbol)
	return entry, restored, nil
}

// GetProposal returns the proposal or a NotFoundError.
func (s *Service) GetProposal(ctx context.Context, id string) (*Proposal, error) {
	return s.config.Proposals.GetByID(ctx, id)
}

// ListProposals returns proposals matching the filter, newest first.
func (s *Service) ListProposals(ctx context.Context, f ProposalFilter) ([]*Proposal, int, error) {
	return s.config.Proposals.List(ctx, f)
}

// LatestProposal returns the most recent actionable proposal for the
// symbol and source, or nil when none exists.
func (s *Service) LatestProposal(ctx context.Context, symbol string, source outcomes.Source) (*Proposal, error) {
	return s.config.Proposals.Latest(ctx, symbol, source)
}

// ProposalStats returns proposal counts for the symbol.
func (s *Service) ProposalStats(ctx context.Context, symbol string) (*Stats, error) {
	return s.config.Proposals.Stats(ctx, symbol)
}

// GetApplication returns the ledger entry or a NotFoundError.
func (s *Service) GetApplication(ctx context.Context, id string) (*Application, error) {
	return s.config.Ledger.GetByID(ctx, id)
}

// ListApplications returns ledger entries for the symbol, newest first.
func (s *Service) ListApplications(ctx context.Context, symbol string, limit int) ([]*Application, int, error) {
	return s.config.Ledger.List(ctx, symbol, limit)
}

// VerifyLedger checks the symbol's application chain end to end.
func (s *Service) VerifyLedger(ctx context.Context, symbol string) error {
	return s.config.Ledger.Verify(ctx, symbol)
}

// Faults returns the symbols currently halted by an integrity fault.
func (s *Service) Faults() map[string]string {
	s.faultMu.RLock()
	defer s.faultMu.RUnlock()
	out := make(map[string]string, len(s.faults))
	for k, v := range s.faults {
		out[k] = v
	}
	return out
}

// ClearFault re-enables applies for a symbol after manual repair.
func (s *Service) ClearFault(symbol string) bool {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	_, ok := s.faults[symbol]
	delete(s.faults, symbol)
	if ok {
		s.logger.Warn("integrity fault cleared", "symbol", symbol)
	}
	return ok
}

func (s *Service) checkFault(symbol string) error {
	s.faultMu.RLock()
	defer s.faultMu.RUnlock()
	if msg, ok := s.faults[symbol]; ok {
		return &IntegrityFaultError{Symbol: symbol, Stage: "halted", Cause: errors.New(msg)}
	}
	return nil
}

// raiseFault records the fault, halting further writes for the symbol,
// and returns the wrapping error.
func (s *Service) raiseFault(symbol, stage string, cause error) error {
	fault := &IntegrityFaultError{Symbol: symbol, Stage: stage, Cause: cause}

	s.faultMu.Lock()
	s.faults[symbol] = fault.Error()
	s.faultMu.Unlock()

	s.metrics.IntegrityFault(symbol)
	s.logger.Error("integrity fault; symbol halted", "symbol", symbol, "stage", stage, "error", cause)
	return fault
}
