package governance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spxcore/fractal/pkg/policy"
)

// Ledger is the audit trail of policy applications. It wraps a
// LedgerStore with the chain invariants: every entry's
// previousPolicyHash must equal the prior entry's newPolicyHash, and the
// newest entry's newPolicyHash must equal the live policy hash. Rollback
// is itself an appended entry, never a deletion.
type Ledger struct {
	store    LedgerStore
	policies policy.Store
	logger   *slog.Logger
	now      func() time.Time
}

// NewLedger creates a ledger over the given backing store and policy
// store.
func NewLedger(store LedgerStore, policies policy.Store) *Ledger {
	return &Ledger{
		store:    store,
		policies: policies,
		logger:   slog.Default().With("component", "governance.ledger"),
		now:      time.Now,
	}
}

// Record appends an application entry after checking it against both
// ends of the chain. A violation is an IntegrityFaultError: the ledger
// and the policy store disagree about history, and nothing automated
// should touch the symbol until someone looks.
func (l *Ledger) Record(ctx context.Context, app *Application) error {
	current, err := l.policies.GetCurrent(ctx, app.Symbol)
	if err != nil {
		return &IntegrityFaultError{Symbol: app.Symbol, Stage: "record_read_policy", Cause: err}
	}
	if current.Hash != app.NewPolicyHash {
		return &IntegrityFaultError{
			Symbol: app.Symbol,
			Stage:  "record_policy_mismatch",
			Cause: fmt.Errorf("live policy hash %s does not match applied hash %s",
				current.Hash, app.NewPolicyHash),
		}
	}

	prior, err := l.store.Latest(ctx, app.Symbol)
	if err != nil {
		return err
	}
	if prior != nil && prior.NewPolicyHash != app.PreviousPolicyHash {
		return &IntegrityFaultError{
			Symbol: app.Symbol,
			Stage:  "record_chain_break",
			Cause: fmt.Errorf("entry claims previous hash %s but chain head is %s",
				app.PreviousPolicyHash, prior.NewPolicyHash),
		}
	}

	if err := l.store.Append(ctx, app); err != nil {
		return err
	}
	l.logger.Info("application recorded",
		"application_id", app.ID,
		"symbol", app.Symbol,
		"proposal_id", app.ProposalID,
		"rollback_of", app.RollbackOf,
	)
	return nil
}

// Rollback reverts the given application by re-applying the policy
// content it replaced, then appending a new entry marked as a rollback.
// Only the most recent application for a symbol may be rolled back; the
// chain stays linear. An empty reason is replaced by a generated
// summary naming the reverted application.
func (l *Ledger) Rollback(ctx context.Context, applicationID, actor, reason string) (*Application, *policy.Policy, error) {
	app, err := l.store.GetByID(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}

	latest, err := l.store.Latest(ctx, app.Symbol)
	if err != nil {
		return nil, nil, err
	}
	if latest == nil || latest.ID != app.ID {
		latestID := ""
		if latest != nil {
			latestID = latest.ID
		}
		return nil, nil, &AlreadyRolledBackError{ApplicationID: app.ID, LatestID: latestID}
	}

	current, err := l.policies.GetCurrent(ctx, app.Symbol)
	if err != nil {
		return nil, nil, &IntegrityFaultError{Symbol: app.Symbol, Stage: "rollback_read_policy", Cause: err}
	}
	if current.Hash != app.NewPolicyHash {
		return nil, nil, &IntegrityFaultError{
			Symbol: app.Symbol,
			Stage:  "rollback_policy_mismatch",
			Cause: fmt.Errorf("live policy hash %s does not match ledger head hash %s",
				current.Hash, app.NewPolicyHash),
		}
	}

	previous, err := l.findVersionByHash(ctx, app.Symbol, app.PreviousPolicyHash)
	if err != nil {
		return nil, nil, err
	}

	if reason == "" {
		reason = fmt.Sprintf("rollback of application %s", app.ID)
	}
	restored, err := l.policies.Replace(ctx, app.Symbol, current.Hash, previous.Content, actor, reason)
	if err != nil {
		return nil, nil, err
	}

	entry := &Application{
		ID:                 uuid.NewString(),
		ProposalID:         app.ProposalID,
		Symbol:             app.Symbol,
		AppliedAt:          l.now().UTC(),
		AppliedBy:          actor,
		Reason:             reason,
		PreviousPolicyHash: app.NewPolicyHash,
		NewPolicyHash:      restored.Hash,
		RollbackOf:         app.ID,
	}
	if err := l.store.Append(ctx, entry); err != nil {
		// Policy moved but the entry did not land; the chain is broken
		// until repaired.
		return nil, nil, &IntegrityFaultError{Symbol: app.Symbol, Stage: "rollback_append", Cause: err}
	}

	l.logger.Info("application rolled back",
		"application_id", app.ID,
		"symbol", app.Symbol,
		"restored_hash", restored.Hash,
		"restored_version", restored.Version,
	)
	return entry, restored, nil
}

// Verify walks the symbol's chain oldest first and checks every link,
// then checks the head against the live policy. Any break is an
// IntegrityFaultError.
func (l *Ledger) Verify(ctx context.Context, symbol string) error {
	entries, _, err := l.store.List(ctx, symbol, 0)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	// List is newest first; walk it backwards.
	for i := len(entries) - 1; i > 0; i-- {
		older, newer := entries[i], entries[i-1]
		if newer.PreviousPolicyHash != older.NewPolicyHash {
			return &IntegrityFaultError{
				Symbol: symbol,
				Stage:  "verify_chain",
				Cause: fmt.Errorf("entry %s claims previous hash %s but entry %s produced %s",
					newer.ID, newer.PreviousPolicyHash, older.ID, older.NewPolicyHash),
			}
		}
	}

	current, err := l.policies.GetCurrent(ctx, symbol)
	if err != nil {
		return &IntegrityFaultError{Symbol: symbol, Stage: "verify_read_policy", Cause: err}
	}
	head := entries[0]
	if current.Hash != head.NewPolicyHash {
		return &IntegrityFaultError{
			Symbol: symbol,
			Stage:  "verify_head",
			Cause: fmt.Errorf("live policy hash %s does not match chain head %s",
				current.Hash, head.NewPolicyHash),
		}
	}
	return nil
}

// GetByID returns the application or a NotFoundError.
func (l *Ledger) GetByID(ctx context.Context, id string) (*Application, error) {
	return l.store.GetByID(ctx, id)
}

// List returns applications for the symbol, newest first.
func (l *Ledger) List(ctx context.Context, symbol string, limit int) ([]*Application, int, error) {
	return l.store.List(ctx, symbol, limit)
}

// Latest returns the most recent application, or nil when none exists.
func (l *Ledger) Latest(ctx context.Context, symbol string) (*Application, error) {
	return l.store.Latest(ctx, symbol)
}

// findVersionByHash locates the policy version carrying the given hash
// in the symbol's history.
func (l *Ledger) findVersionByHash(ctx context.Context, symbol, hash string) (*policy.Policy, error) {
	history, err := l.policies.History(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	for _, p := range history {
		if p.Hash == hash {
			return p, nil
		}
	}
	return nil, &IntegrityFaultError{
		Symbol: symbol,
		Stage:  "rollback_missing_version",
		Cause:  fmt.Errorf("no policy version with hash %s in history", hash),
	}
}
