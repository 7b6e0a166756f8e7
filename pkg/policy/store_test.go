package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestHashWeights_Deterministic(t *testing.T) {
	a := DefaultWeights()
	b := DefaultWeights()

	if HashWeights(a) != HashWeights(b) {
		t.Error("equal content produced different hashes")
	}

	b.TierWeights[TierTiming] = 0.25
	if HashWeights(a) == HashWeights(b) {
		t.Error("different content produced equal hashes")
	}
}

func TestHashWeights_IgnoresMapOrder(t *testing.T) {
	a := Weights{TierWeights: map[string]float64{"STRUCTURE": 0.5, "TACTICAL": 0.3, "TIMING": 0.2}}
	b := Weights{TierWeights: map[string]float64{"TIMING": 0.2, "STRUCTURE": 0.5, "TACTICAL": 0.3}}

	if HashWeights(a) != HashWeights(b) {
		t.Error("map insertion order affected the hash")
	}
}

func TestMemoryStore_GetCurrent_NotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetCurrent(context.Background(), "BTC")

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("GetCurrent() error = %v, want *NotFoundError", err)
	}
	if notFound.Symbol != "BTC" {
		t.Errorf("NotFoundError.Symbol = %q, want %q", notFound.Symbol, "BTC")
	}
}

func TestMemoryStore_Seed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p, err := store.Seed(ctx, "BTC", DefaultWeights(), "system")
	if err != nil {
		t.Fatalf("Seed() error = %v, want nil", err)
	}

	if p.Version != 1 {
		t.Errorf("seeded version = %d, want 1", p.Version)
	}
	if p.Hash != HashWeights(DefaultWeights()) {
		t.Error("seeded hash does not match content hash")
	}

	// Seeding again must not create a new version.
	p2, err := store.Seed(ctx, "BTC", DefaultWeights(), "system")
	if err != nil {
		t.Fatalf("second Seed() error = %v, want nil", err)
	}
	if p2.Version != 1 {
		t.Errorf("re-seed version = %d, want 1", p2.Version)
	}
}

func TestMemoryStore_Replace(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seeded, err := store.Seed(ctx, "BTC", DefaultWeights(), "system")
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	next := DefaultWeights()
	next.TierWeights[TierStructure] = 0.55
	next.TierWeights[TierTactical] = 0.25

	replaced, err := store.Replace(ctx, "BTC", seeded.Hash, next, "admin", "tune structure weight")
	if err != nil {
		t.Fatalf("Replace() error = %v, want nil", err)
	}

	if replaced.Version != seeded.Version+1 {
		t.Errorf("replaced version = %d, want %d", replaced.Version, seeded.Version+1)
	}
	if replaced.Hash != HashWeights(next) {
		t.Error("replaced hash does not match new content")
	}
	if replaced.Hash == seeded.Hash {
		t.Error("replaced hash equals previous hash")
	}

	current, err := store.GetCurrent(ctx, "BTC")
	if err != nil {
		t.Fatalf("GetCurrent() error = %v", err)
	}
	if current.Hash != replaced.Hash {
		t.Error("GetCurrent() does not observe the replacement")
	}
}

func TestMemoryStore_Replace_StaleHash(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seeded, _ := store.Seed(ctx, "BTC", DefaultWeights(), "system")

	next := DefaultWeights()
	next.TierWeights[TierTiming] = 0.30
	if _, err := store.Replace(ctx, "BTC", seeded.Hash, next, "admin", "first"); err != nil {
		t.Fatalf("first Replace() error = %v", err)
	}

	// Second replace against the original hash must conflict.
	_, err := store.Replace(ctx, "BTC", seeded.Hash, next, "admin", "second")

	var stale *StaleHashError
	if !errors.As(err, &stale) {
		t.Fatalf("Replace() error = %v, want *StaleHashError", err)
	}
	if stale.ExpectedHash != seeded.Hash {
		t.Errorf("StaleHashError.ExpectedHash = %s, want %s", stale.ExpectedHash, seeded.Hash)
	}
}

func TestMemoryStore_Replace_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seeded, _ := store.Seed(ctx, "BTC", DefaultWeights(), "system")

	next := DefaultWeights()
	next.TierWeights[TierStructure] = 0.60

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Replace(ctx, "BTC", seeded.Hash, next, "admin", "race")
		}(i)
	}
	wg.Wait()

	successes := 0
	staleErrors := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			var stale *StaleHashError
			if errors.As(err, &stale) {
				staleErrors++
			}
		}
	}

	if successes != 1 {
		t.Errorf("concurrent Replace successes = %d, want exactly 1", successes)
	}
	if staleErrors != racers-1 {
		t.Errorf("concurrent Replace stale errors = %d, want %d", staleErrors, racers-1)
	}
}

func TestMemoryStore_History(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p, _ := store.Seed(ctx, "BTC", DefaultWeights(), "system")
	for i := 0; i < 3; i++ {
		next := DefaultWeights()
		next.TierWeights[TierStructure] = 0.50 + float64(i+1)*0.01
		var err error
		p, err = store.Replace(ctx, "BTC", p.Hash, next, "admin", "step")
		if err != nil {
			t.Fatalf("Replace() error = %v", err)
		}
	}

	history, err := store.History(ctx, "BTC", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}

	if len(history) != 4 {
		t.Fatalf("len(history) = %d, want 4", len(history))
	}
	for i := 0; i < len(history)-1; i++ {
		if history[i].Version <= history[i+1].Version {
			t.Errorf("history not newest first at index %d: %d <= %d",
				i, history[i].Version, history[i+1].Version)
		}
	}

	limited, err := store.History(ctx, "BTC", 2)
	if err != nil {
		t.Fatalf("History(limit=2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited history) = %d, want 2", len(limited))
	}
	if limited[0].Version != 4 {
		t.Errorf("limited history head version = %d, want 4", limited[0].Version)
	}
}

func TestMemoryStore_CloneIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Seed(ctx, "BTC", DefaultWeights(), "system")

	p, _ := store.GetCurrent(ctx, "BTC")
	p.Content.TierWeights[TierStructure] = 99.0

	fresh, _ := store.GetCurrent(ctx, "BTC")
	if fresh.Content.TierWeights[TierStructure] == 99.0 {
		t.Error("mutating a returned policy leaked into the store")
	}
}
