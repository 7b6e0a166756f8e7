package learning

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"spxcore/fractal/pkg/outcomes"
)

// Aggregator thresholds. A vector is learning-eligible only when every
// tier carries enough resolved samples and calibration stays inside the
// ceiling; ineligible vectors still feed diagnostics but produce
// guardrail-failed proposals.
const (
	// MinSamplesPerTier is the minimum resolved samples a tier needs
	// before its hit rate is trusted.
	MinSamplesPerTier = 10

	// MaxCalibrationError is the eligibility ceiling on the gap between
	// stated confidence and realized hit rate.
	MaxCalibrationError = 0.15
)

// Aggregator computes learning vectors from resolved snapshots.
type Aggregator struct {
	store  outcomes.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewAggregator creates a new learning aggregator.
func NewAggregator(store outcomes.Store) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: slog.Default().With("component", "learning.aggregator"),
		now:    time.Now,
	}
}

// ComputeVector aggregates resolved outcomes for the query's cohort and
// window into a learning vector.
func (a *Aggregator) ComputeVector(ctx context.Context, q Query) (*Vector, error) {
	if q.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if q.WindowDays <= 0 {
		q.WindowDays = 90
	}
	if q.Source == "" {
		q.Source = outcomes.SourceLive
	}
	if !q.Source.Valid() {
		return nil, fmt.Errorf("unknown source %q", q.Source)
	}

	asOf := a.now().UTC()
	since := asOf.AddDate(0, 0, -q.WindowDays)

	snaps, err := a.store.List(ctx, outcomes.Filter{
		Symbol:       q.Symbol,
		Source:       q.Source,
		ResolvedOnly: true,
		Since:        since,
	})
	if err != nil {
		return nil, fmt.Errorf("list resolved snapshots: %w", err)
	}

	v := &Vector{
		Symbol:          q.Symbol,
		WindowDays:      q.WindowDays,
		AsOf:            asOf,
		Preset:          q.Preset,
		Role:            q.Role,
		Source:          q.Source,
		ResolvedSamples: len(snaps),
		Tier:            make(map[string]BucketStats),
		Regime:          make(map[string]BucketStats),
	}

	tierAgg := newBucketAggregate()
	regimeAgg := newBucketAggregate()
	phaseAgg := newBucketAggregate()

	totalHits := 0
	divergingSamples := 0
	divergingHits := 0
	confidenceSum := 0.0

	for _, snap := range snaps {
		tierAgg.add(snap.Tier, snap.Hit, snap.Confidence)
		regimeAgg.add(snap.Regime, snap.Hit, snap.Confidence)
		phaseAgg.add(snap.PhaseGrade, snap.Hit, snap.Confidence)

		if snap.Hit {
			totalHits++
		}
		confidenceSum += snap.Confidence

		if snap.Divergence == "MODERATE" || snap.Divergence == "SEVERE" {
			divergingSamples++
			if snap.Hit {
				divergingHits++
			}
		}
	}

	v.Tier = tierAgg.stats()
	v.Regime = regimeAgg.stats()
	v.Phase = phaseStats(phaseAgg)

	if len(snaps) > 0 {
		overallHitRate := float64(totalHits) / float64(len(snaps))
		avgConfidence := confidenceSum / float64(len(snaps))
		v.CalibrationError = math.Abs(avgConfidence - overallHitRate)

		if divergingSamples > 0 {
			divergingHitRate := float64(divergingHits) / float64(divergingSamples)
			v.DivergenceImpact = divergingHitRate - overallHitRate
		}
	}

	v.DominantTier = dominant(v.Tier)
	v.DominantRegime = dominant(v.Regime)
	v.LearningEligible, v.EligibilityReasons = a.eligibility(v)

	a.logger.Debug("computed learning vector",
		"symbol", v.Symbol,
		"source", v.Source,
		"resolved_samples", v.ResolvedSamples,
		"eligible", v.LearningEligible,
		"dominant_tier", v.DominantTier,
	)
	return v, nil
}

// eligibility evaluates the vector's own quality gates. These gate
// proposal creation, not application.
func (a *Aggregator) eligibility(v *Vector) (bool, []string) {
	var reasons []string

	if v.ResolvedSamples == 0 {
		reasons = append(reasons, "no resolved samples in window")
		return false, reasons
	}

	for _, tier := range []string{"STRUCTURE", "TACTICAL", "TIMING"} {
		stats := v.Tier[tier]
		if stats.Samples < MinSamplesPerTier {
			reasons = append(reasons, fmt.Sprintf(
				"tier %s has %d resolved samples, need %d", tier, stats.Samples, MinSamplesPerTier))
		}
	}

	if v.CalibrationError > MaxCalibrationError {
		reasons = append(reasons, fmt.Sprintf(
			"calibration error %.3f exceeds ceiling %.2f", v.CalibrationError, MaxCalibrationError))
	}

	return len(reasons) == 0, reasons
}

type bucketAggregate struct {
	samples    map[string]int
	hits       map[string]int
	confidence map[string]float64
}

func newBucketAggregate() *bucketAggregate {
	return &bucketAggregate{
		samples:    make(map[string]int),
		hits:       make(map[string]int),
		confidence: make(map[string]float64),
	}
}

func (b *bucketAggregate) add(key string, hit bool, confidence float64) {
	if key == "" {
		return
	}
	b.samples[key]++
	b.confidence[key] += confidence
	if hit {
		b.hits[key]++
	}
}

func (b *bucketAggregate) stats() map[string]BucketStats {
	out := make(map[string]BucketStats, len(b.samples))
	for key, n := range b.samples {
		out[key] = BucketStats{
			Samples:       n,
			Hits:          b.hits[key],
			HitRate:       float64(b.hits[key]) / float64(n),
			AvgConfidence: b.confidence[key] / float64(n),
		}
	}
	return out
}

func phaseStats(agg *bucketAggregate) []PhaseStats {
	grades := make([]string, 0, len(agg.samples))
	for grade := range agg.samples {
		grades = append(grades, grade)
	}
	sort.Strings(grades)

	out := make([]PhaseStats, 0, len(grades))
	for _, grade := range grades {
		n := agg.samples[grade]
		out = append(out, PhaseStats{
			Grade:   grade,
			Samples: n,
			HitRate: float64(agg.hits[grade]) / float64(n),
		})
	}
	return out
}

// dominant returns the bucket with the best hit rate among buckets that
// carry enough samples to be trusted. Ties break toward more samples.
func dominant(buckets map[string]BucketStats) string {
	best := ""
	var bestStats BucketStats
	for key, stats := range buckets {
		if stats.Samples < MinSamplesPerTier {
			continue
		}
		if best == "" ||
			stats.HitRate > bestStats.HitRate ||
			(stats.HitRate == bestStats.HitRate && stats.Samples > bestStats.Samples) {
			best = key
			bestStats = stats
		}
	}
	return best
}
