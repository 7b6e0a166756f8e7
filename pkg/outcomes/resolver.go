package outcomes

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PriceSource supplies realized closes for resolution. Implementations
// are expected to be backed by the market-data feed; tests use a fixture.
type PriceSource interface {
	// CloseAt returns the close price for the symbol at or immediately
	// after the given time.
	CloseAt(ctx context.Context, symbol string, at time.Time) (float64, error)
}

// Resolver matches pending forecast snapshots against realized price
// action and marks them resolved. A forecast hits when the realized
// close moved in the forecast direction relative to the entry price.
type Resolver struct {
	store  Store
	prices PriceSource
	logger *slog.Logger
}

// NewResolver creates a new forward-truth resolver.
func NewResolver(store Store, prices PriceSource) *Resolver {
	return &Resolver{
		store:  store,
		prices: prices,
		logger: slog.Default().With("component", "outcomes.resolver"),
	}
}

// Resolve processes all pending snapshots for the symbol that are due at
// asOf. It returns the number of snapshots resolved. Snapshots whose
// price lookup fails are skipped and retried on the next run.
func (r *Resolver) Resolve(ctx context.Context, symbol string, asOf time.Time) (int, error) {
	pending, err := r.store.ListPending(ctx, symbol, asOf)
	if err != nil {
		return 0, fmt.Errorf("list pending snapshots: %w", err)
	}

	resolved := 0
	for _, snap := range pending {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}

		realized, err := r.prices.CloseAt(ctx, symbol, snap.ResolveAt)
		if err != nil {
			r.logger.Warn("price lookup failed, snapshot deferred",
				"snapshot_id", snap.ID,
				"resolve_at", snap.ResolveAt,
				"error", err,
			)
			continue
		}

		hit := hitFor(snap.Direction, snap.EntryPrice, realized)
		if err := r.store.MarkResolved(ctx, snap.ID, hit, realized, asOf); err != nil {
			return resolved, fmt.Errorf("mark snapshot %s resolved: %w", snap.ID, err)
		}
		resolved++
	}

	if resolved > 0 {
		r.logger.Info("resolved snapshots",
			"symbol", symbol,
			"count", resolved,
			"pending_remaining", len(pending)-resolved,
		)
	}
	return resolved, nil
}

// LiveSampleCount returns the number of resolved LIVE-sourced outcomes
// for the symbol. This feeds the governance lock; no other cohort may
// contribute.
func (r *Resolver) LiveSampleCount(ctx context.Context, symbol string) (int, error) {
	return r.store.Count(ctx, Filter{
		Symbol:       symbol,
		Source:       SourceLive,
		ResolvedOnly: true,
	})
}

func hitFor(dir Direction, entry, realized float64) bool {
	switch dir {
	case DirectionUp:
		return realized > entry
	case DirectionDown:
		return realized < entry
	}
	return false
}
