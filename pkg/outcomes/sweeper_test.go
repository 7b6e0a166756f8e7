package outcomes

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSnapshotPriceSource_CloseAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC().Add(-48 * time.Hour)

	older := testSnapshot("older", "BTC", SourceLive)
	older.CreatedAt = base
	older.EntryPrice = 90
	near := testSnapshot("near", "BTC", SourceLive)
	near.CreatedAt = base.Add(2 * time.Hour)
	near.EntryPrice = 100
	later := testSnapshot("later", "BTC", SourceLive)
	later.CreatedAt = base.Add(24 * time.Hour)
	later.EntryPrice = 120
	for _, snap := range []*Snapshot{older, near, later} {
		if err := store.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert(%s) error = %v", snap.ID, err)
		}
	}

	prices := NewSnapshotPriceSource(store)
	got, err := prices.CloseAt(ctx, "BTC", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CloseAt() error = %v", err)
	}
	if got != 100 {
		t.Errorf("CloseAt() = %v, want 100 (earliest observation after the requested time)", got)
	}
}

func TestSnapshotPriceSource_CloseAt_NoObservation(t *testing.T) {
	prices := NewSnapshotPriceSource(NewMemoryStore())
	_, err := prices.CloseAt(context.Background(), "BTC", time.Now().UTC())
	if err == nil {
		t.Fatal("CloseAt() error = nil, want no-observation error")
	}
	if !strings.Contains(err.Error(), "no price observation") {
		t.Errorf("CloseAt() error = %v, want no-observation error", err)
	}
}

func TestSweeper_RunOnce_ResolvesPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	due := testSnapshot("due", "BTC", SourceLive)
	due.ResolveAt = now.Add(-time.Minute)
	if err := store.Insert(ctx, due); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	resolver := NewResolver(store, &fixedPrices{price: 110})
	sweeper := NewSweeper(resolver, []string{"BTC", "ETH"}, "")
	if err := sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	snaps, err := store.List(ctx, Filter{Symbol: "BTC", ResolvedOnly: true})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("resolved snapshots = %d, want 1", len(snaps))
	}
	if !snaps[0].Hit {
		t.Error("Hit = false, want true for an UP forecast with a higher realized close")
	}
}

func TestSweeper_Start_EmptyScheduleIsNoop(t *testing.T) {
	resolver := NewResolver(NewMemoryStore(), &fixedPrices{price: 100})
	sweeper := NewSweeper(resolver, []string{"BTC"}, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sweeper.IsRunning() {
		t.Error("IsRunning() = true, want false with empty schedule")
	}
}

func TestSweeper_Start_InvalidSchedule(t *testing.T) {
	resolver := NewResolver(NewMemoryStore(), &fixedPrices{price: 100})
	sweeper := NewSweeper(resolver, []string{"BTC"}, "not-a-cron")

	if err := sweeper.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want invalid schedule error")
	}
}

func TestSweeper_StartStop(t *testing.T) {
	resolver := NewResolver(NewMemoryStore(), &fixedPrices{price: 100})
	sweeper := NewSweeper(resolver, []string{"BTC"}, "0 3 * * *")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !sweeper.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	sweeper.Stop()
	if sweeper.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	sweeper.Stop() // idempotent
}
