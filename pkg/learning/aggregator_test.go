package learning

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"spxcore/fractal/pkg/outcomes"
)

// seedOutcomes inserts n resolved snapshots for the tier with the given
// hit count, all at the same confidence.
func seedOutcomes(t *testing.T, store outcomes.Store, symbol, tier string, n, hits int, confidence float64) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		snap := &outcomes.Snapshot{
			ID:         fmt.Sprintf("%s-%s-%d", tier, symbol, i),
			Symbol:     symbol,
			Source:     outcomes.SourceLive,
			Tier:       tier,
			Regime:     "NORMAL",
			PhaseGrade: "B",
			Divergence: "NONE",
			Horizon:    "7d",
			Direction:  outcomes.DirectionUp,
			Confidence: confidence,
			EntryPrice: 100,
			CreatedAt:  now.Add(-time.Duration(i) * time.Minute),
			ResolveAt:  now.Add(-time.Duration(i) * time.Minute),
			Resolved:   true,
			Hit:        i < hits,
		}
		if err := store.Insert(context.Background(), snap); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
}

func TestAggregator_ComputeVector_Empty(t *testing.T) {
	agg := NewAggregator(outcomes.NewMemoryStore())

	v, err := agg.ComputeVector(context.Background(), Query{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("ComputeVector() error = %v", err)
	}

	if v.ResolvedSamples != 0 {
		t.Errorf("ResolvedSamples = %d, want 0", v.ResolvedSamples)
	}
	if v.LearningEligible {
		t.Error("LearningEligible = true with no samples")
	}
	if len(v.EligibilityReasons) == 0 {
		t.Error("no eligibility reasons for an empty window")
	}
	if v.DominantTier != "" {
		t.Errorf("DominantTier = %q, want empty", v.DominantTier)
	}
}

func TestAggregator_ComputeVector_RequiresSymbol(t *testing.T) {
	agg := NewAggregator(outcomes.NewMemoryStore())

	if _, err := agg.ComputeVector(context.Background(), Query{}); err == nil {
		t.Fatal("ComputeVector() with no symbol did not error")
	}
}

func TestAggregator_ComputeVector_RejectsUnknownSource(t *testing.T) {
	agg := NewAggregator(outcomes.NewMemoryStore())

	_, err := agg.ComputeVector(context.Background(), Query{Symbol: "BTC", Source: "STAGING"})
	if err == nil {
		t.Fatal("ComputeVector() with unknown source did not error")
	}
}

func TestAggregator_ComputeVector_BucketStats(t *testing.T) {
	store := outcomes.NewMemoryStore()
	seedOutcomes(t, store, "BTC", "STRUCTURE", 20, 14, 0.70) // 0.70 hit rate
	seedOutcomes(t, store, "BTC", "TACTICAL", 20, 10, 0.50)  // 0.50
	seedOutcomes(t, store, "BTC", "TIMING", 10, 4, 0.40)     // 0.40

	agg := NewAggregator(store)
	v, err := agg.ComputeVector(context.Background(), Query{Symbol: "BTC", WindowDays: 90})
	if err != nil {
		t.Fatalf("ComputeVector() error = %v", err)
	}

	if v.ResolvedSamples != 50 {
		t.Errorf("ResolvedSamples = %d, want 50", v.ResolvedSamples)
	}
	structure := v.Tier["STRUCTURE"]
	if structure.Samples != 20 || structure.Hits != 14 {
		t.Errorf("STRUCTURE = %+v, want 20 samples / 14 hits", structure)
	}
	if math.Abs(structure.HitRate-0.70) > 1e-9 {
		t.Errorf("STRUCTURE hit rate = %f, want 0.70", structure.HitRate)
	}
	if v.DominantTier != "STRUCTURE" {
		t.Errorf("DominantTier = %q, want STRUCTURE", v.DominantTier)
	}
	if !v.LearningEligible {
		t.Errorf("LearningEligible = false, reasons: %v", v.EligibilityReasons)
	}
}

func TestAggregator_ComputeVector_CalibrationError(t *testing.T) {
	store := outcomes.NewMemoryStore()
	// Confidence 0.90 but only half hit: calibration error 0.40.
	seedOutcomes(t, store, "BTC", "STRUCTURE", 20, 10, 0.90)
	seedOutcomes(t, store, "BTC", "TACTICAL", 20, 10, 0.90)
	seedOutcomes(t, store, "BTC", "TIMING", 20, 10, 0.90)

	agg := NewAggregator(store)
	v, err := agg.ComputeVector(context.Background(), Query{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("ComputeVector() error = %v", err)
	}

	if math.Abs(v.CalibrationError-0.40) > 1e-9 {
		t.Errorf("CalibrationError = %f, want 0.40", v.CalibrationError)
	}
	if v.LearningEligible {
		t.Error("LearningEligible = true with calibration error far over the ceiling")
	}
}

func TestAggregator_ComputeVector_ThinTierBlocksEligibility(t *testing.T) {
	store := outcomes.NewMemoryStore()
	seedOutcomes(t, store, "BTC", "STRUCTURE", 20, 12, 0.60)
	seedOutcomes(t, store, "BTC", "TACTICAL", 20, 12, 0.60)
	seedOutcomes(t, store, "BTC", "TIMING", 3, 2, 0.60) // below the floor

	agg := NewAggregator(store)
	v, err := agg.ComputeVector(context.Background(), Query{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("ComputeVector() error = %v", err)
	}

	if v.LearningEligible {
		t.Error("LearningEligible = true with a thin TIMING tier")
	}
	found := false
	for _, r := range v.EligibilityReasons {
		if r == "tier TIMING has 3 resolved samples, need 10" {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want the TIMING floor violation named", v.EligibilityReasons)
	}
}

func TestAggregator_ComputeVector_DivergenceImpact(t *testing.T) {
	store := outcomes.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// 10 clean hits, 10 diverging misses: overall 0.5, diverging 0.0.
	for i := 0; i < 20; i++ {
		divergence := "NONE"
		hit := true
		if i >= 10 {
			divergence = "SEVERE"
			hit = false
		}
		snap := &outcomes.Snapshot{
			ID:         "d-" + string(rune('a'+i)),
			Symbol:     "BTC",
			Source:     outcomes.SourceLive,
			Tier:       "STRUCTURE",
			Regime:     "NORMAL",
			PhaseGrade: "B",
			Divergence: divergence,
			Horizon:    "7d",
			Direction:  outcomes.DirectionUp,
			Confidence: 0.5,
			CreatedAt:  now.Add(-time.Minute),
			ResolveAt:  now.Add(-time.Minute),
			Resolved:   true,
			Hit:        hit,
		}
		if err := store.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	agg := NewAggregator(store)
	v, err := agg.ComputeVector(ctx, Query{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("ComputeVector() error = %v", err)
	}

	if math.Abs(v.DivergenceImpact-(-0.5)) > 1e-9 {
		t.Errorf("DivergenceImpact = %f, want -0.5", v.DivergenceImpact)
	}
}

func TestAggregator_ComputeVector_WindowExcludesOldSamples(t *testing.T) {
	store := outcomes.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	old := &outcomes.Snapshot{
		ID: "old", Symbol: "BTC", Source: outcomes.SourceLive,
		Tier: "STRUCTURE", Direction: outcomes.DirectionUp, Confidence: 0.6,
		CreatedAt: now.AddDate(0, 0, -120), ResolveAt: now.AddDate(0, 0, -113),
		Resolved: true, Hit: true,
	}
	recent := &outcomes.Snapshot{
		ID: "recent", Symbol: "BTC", Source: outcomes.SourceLive,
		Tier: "STRUCTURE", Direction: outcomes.DirectionUp, Confidence: 0.6,
		CreatedAt: now.AddDate(0, 0, -5), ResolveAt: now.AddDate(0, 0, -1),
		Resolved: true, Hit: true,
	}
	for _, snap := range []*outcomes.Snapshot{old, recent} {
		if err := store.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	agg := NewAggregator(store)
	v, err := agg.ComputeVector(ctx, Query{Symbol: "BTC", WindowDays: 90})
	if err != nil {
		t.Fatalf("ComputeVector() error = %v", err)
	}
	if v.ResolvedSamples != 1 {
		t.Errorf("ResolvedSamples = %d, want 1; the 120-day-old sample is outside the window", v.ResolvedSamples)
	}
}
