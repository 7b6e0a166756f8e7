package outcomes

import (
	"context"
	"fmt"
	"time"
)

// SnapshotPriceSource derives closes from the entry prices of recorded
// snapshots. Every snapshot carries the market price observed when the
// forecast was taken, so the store itself doubles as a sparse price
// history. Used when no external market-data feed is wired.
type SnapshotPriceSource struct {
	store Store
}

// NewSnapshotPriceSource creates a price source backed by the snapshot
// store.
func NewSnapshotPriceSource(store Store) *SnapshotPriceSource {
	return &SnapshotPriceSource{store: store}
}

// CloseAt returns the entry price of the earliest snapshot recorded at
// or after the given time. An error is returned when no observation
// exists yet, which defers resolution until one does.
func (s *SnapshotPriceSource) CloseAt(ctx context.Context, symbol string, at time.Time) (float64, error) {
	snaps, err := s.store.List(ctx, Filter{Symbol: symbol, Since: at})
	if err != nil {
		return 0, fmt.Errorf("list snapshots for price lookup: %w", err)
	}
	if len(snaps) == 0 {
		return 0, fmt.Errorf("no price observation for %s at or after %s", symbol, at.Format(time.RFC3339))
	}

	// List returns newest first; the earliest observation after the
	// requested time is the closest to it.
	earliest := snaps[len(snaps)-1]
	for _, snap := range snaps {
		if snap.CreatedAt.Before(earliest.CreatedAt) {
			earliest = snap
		}
	}
	return earliest.EntryPrice, nil
}
