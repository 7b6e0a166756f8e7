package outcomes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func testSnapshot(id, symbol string, source Source) *Snapshot {
	now := time.Now().UTC()
	return &Snapshot{
		ID:         id,
		Symbol:     symbol,
		Source:     source,
		Tier:       "STRUCTURE",
		Regime:     "NORMAL",
		PhaseGrade: "B",
		Divergence: "NONE",
		Horizon:    "7d",
		Direction:  DirectionUp,
		Confidence: 0.65,
		EntryPrice: 100,
		CreatedAt:  now,
		ResolveAt:  now.Add(7 * 24 * time.Hour),
	}
}

func TestSource_Valid(t *testing.T) {
	for _, s := range []Source{SourceLive, SourceV2020, SourceV2014, SourceBootstrap} {
		if !s.Valid() {
			t.Errorf("Valid(%s) = false", s)
		}
	}
	if Source("STAGING").Valid() {
		t.Error("Valid(STAGING) = true")
	}
}

func TestMemoryStore_InsertAndList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		snap := testSnapshot(fmt.Sprintf("s-%d", i), "BTC", SourceLive)
		snap.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	snaps, err := store.List(ctx, Filter{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("len = %d, want 3", len(snaps))
	}
	if snaps[0].ID != "s-2" {
		t.Errorf("first = %s, want newest s-2", snaps[0].ID)
	}

	limited, err := store.List(ctx, Filter{Symbol: "BTC", Limit: 2})
	if err != nil {
		t.Fatalf("List(limit) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited len = %d, want 2", len(limited))
	}
}

func TestMemoryStore_FilterBySourceAndResolution(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	live := testSnapshot("live-1", "BTC", SourceLive)
	if err := store.Insert(ctx, live); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := store.Insert(ctx, testSnapshot("v-1", "BTC", SourceV2020)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := store.MarkResolved(ctx, "live-1", true, 105, time.Now().UTC()); err != nil {
		t.Fatalf("MarkResolved() error = %v", err)
	}

	count, err := store.Count(ctx, Filter{Symbol: "BTC", Source: SourceLive, ResolvedOnly: true})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("resolved LIVE count = %d, want 1", count)
	}

	count, err = store.Count(ctx, Filter{Symbol: "BTC", ResolvedOnly: true})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("resolved count = %d, want 1", count)
	}
}

func TestMemoryStore_MarkResolved_NotFound(t *testing.T) {
	store := NewMemoryStore()

	err := store.MarkResolved(context.Background(), "missing", true, 1, time.Now())
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("MarkResolved() error = %v, want *NotFoundError", err)
	}
}

func TestMemoryStore_ListPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	due := testSnapshot("due", "BTC", SourceLive)
	due.ResolveAt = now.Add(-time.Hour)
	notDue := testSnapshot("not-due", "BTC", SourceLive)
	notDue.ResolveAt = now.Add(time.Hour)
	done := testSnapshot("done", "BTC", SourceLive)
	done.ResolveAt = now.Add(-2 * time.Hour)

	for _, snap := range []*Snapshot{due, notDue, done} {
		if err := store.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if err := store.MarkResolved(ctx, "done", false, 95, now); err != nil {
		t.Fatalf("MarkResolved() error = %v", err)
	}

	pending, err := store.ListPending(ctx, "BTC", now)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "due" {
		t.Errorf("pending = %v, want only the due unresolved snapshot", pending)
	}
}

func TestMemoryStore_DeleteBatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	batch := []*Snapshot{
		testSnapshot("b-1", "BTC", SourceBootstrap),
		testSnapshot("b-2", "BTC", SourceBootstrap),
	}
	for _, snap := range batch {
		snap.BatchID = "batch-1"
	}
	keep := testSnapshot("live-1", "BTC", SourceLive)

	if err := store.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if err := store.Insert(ctx, keep); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	removed, err := store.DeleteBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("DeleteBatch() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	count, err := store.Count(ctx, Filter{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("remaining = %d, want 1", count)
	}
}

type fixedPrices struct {
	price float64
	err   error
}

func (f *fixedPrices) CloseAt(ctx context.Context, symbol string, at time.Time) (float64, error) {
	return f.price, f.err
}

func TestResolver_Resolve(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	up := testSnapshot("up", "BTC", SourceLive)
	up.ResolveAt = now.Add(-time.Minute)
	down := testSnapshot("down", "BTC", SourceLive)
	down.Direction = DirectionDown
	down.ResolveAt = now.Add(-time.Minute)

	for _, snap := range []*Snapshot{up, down} {
		if err := store.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	resolver := NewResolver(store, &fixedPrices{price: 110})
	resolved, err := resolver.Resolve(ctx, "BTC", now)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved != 2 {
		t.Errorf("resolved = %d, want 2", resolved)
	}

	snaps, err := store.List(ctx, Filter{Symbol: "BTC", ResolvedOnly: true})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, snap := range snaps {
		switch snap.ID {
		case "up":
			if !snap.Hit {
				t.Error("UP forecast at entry 100 with close 110 should hit")
			}
		case "down":
			if snap.Hit {
				t.Error("DOWN forecast at entry 100 with close 110 should miss")
			}
		}
		if snap.RealizedPrice != 110 {
			t.Errorf("RealizedPrice = %v, want 110", snap.RealizedPrice)
		}
	}
}

func TestResolver_Resolve_DefersOnPriceError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	snap := testSnapshot("s-1", "BTC", SourceLive)
	snap.ResolveAt = now.Add(-time.Minute)
	if err := store.Insert(ctx, snap); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	resolver := NewResolver(store, &fixedPrices{err: errors.New("feed down")})
	resolved, err := resolver.Resolve(ctx, "BTC", now)
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil with deferral", err)
	}
	if resolved != 0 {
		t.Errorf("resolved = %d, want 0", resolved)
	}

	// Still pending for the next run.
	pending, err := store.ListPending(ctx, "BTC", now)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}

func TestResolver_LiveSampleCount_ExcludesOtherCohorts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	live := testSnapshot("live", "BTC", SourceLive)
	boot := testSnapshot("boot", "BTC", SourceBootstrap)
	for _, snap := range []*Snapshot{live, boot} {
		if err := store.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if err := store.MarkResolved(ctx, snap.ID, true, 105, now); err != nil {
			t.Fatalf("MarkResolved() error = %v", err)
		}
	}

	resolver := NewResolver(store, &fixedPrices{price: 105})
	count, err := resolver.LiveSampleCount(ctx, "BTC")
	if err != nil {
		t.Fatalf("LiveSampleCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("LiveSampleCount() = %d; bootstrap outcomes must not count", count)
	}
}
