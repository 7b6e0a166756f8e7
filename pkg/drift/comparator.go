package drift

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"spxcore/fractal/pkg/outcomes"
)

// Severity thresholds on the absolute hit-rate delta between cohorts.
const (
	lowThreshold      = 0.05
	moderateThreshold = 0.10
	highThreshold     = 0.15
	criticalThreshold = 0.25
)

// minComparableSamples is the floor below which a cohort pair is not
// graded at all; tiny cohorts produce noise, not drift.
const minComparableSamples = 10

// Comparator measures divergence between the LIVE cohort and each
// historical cohort.
type Comparator struct {
	store  outcomes.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewComparator creates a new drift comparator.
func NewComparator(store outcomes.Store) *Comparator {
	return &Comparator{
		store:  store,
		logger: slog.Default().With("component", "drift.comparator"),
		now:    time.Now,
	}
}

// CompareCohorts grades LIVE against every historical cohort over the
// window and returns the per-pair comparisons plus an overall verdict.
func (c *Comparator) CompareCohorts(ctx context.Context, symbol string, windowDays int) (*Report, error) {
	if windowDays <= 0 {
		windowDays = 90
	}

	asOf := c.now().UTC()
	base, err := c.cohortStats(ctx, symbol, outcomes.SourceLive, windowDays, asOf)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Symbol:     symbol,
		WindowDays: windowDays,
		AsOf:       asOf,
	}

	others := []outcomes.Source{outcomes.SourceV2020, outcomes.SourceV2014, outcomes.SourceBootstrap}
	overall := SeverityNone

	for _, source := range others {
		other, err := c.cohortStats(ctx, symbol, source, windowDays, asOf)
		if err != nil {
			return nil, err
		}

		cmp := Comparison{
			Pair:         fmt.Sprintf("%s/%s", outcomes.SourceLive, source),
			BaseSamples:  base.samples,
			OtherSamples: other.samples,
			Severity:     SeverityNone,
		}

		if base.samples >= minComparableSamples && other.samples >= minComparableSamples {
			cmp.HitRateDelta = base.hitRate - other.hitRate
			cmp.CalibrationDelta = base.calibration - other.calibration
			cmp.Severity = gradeDelta(math.Abs(cmp.HitRateDelta))
		}

		if cmp.Severity.Rank() > overall.Rank() {
			overall = cmp.Severity
		}
		report.Comparisons = append(report.Comparisons, cmp)
	}

	report.Verdict = Verdict{
		OverallSeverity: overall,
		Recommendation:  recommendationFor(overall),
	}

	if overall.Blocking() {
		c.logger.Warn("blocking drift detected",
			"symbol", symbol,
			"severity", overall,
			"window_days", windowDays,
		)
	}
	return report, nil
}

type cohortSummary struct {
	samples     int
	hitRate     float64
	calibration float64
}

func (c *Comparator) cohortStats(ctx context.Context, symbol string, source outcomes.Source, windowDays int, asOf time.Time) (cohortSummary, error) {
	snaps, err := c.store.List(ctx, outcomes.Filter{
		Symbol:       symbol,
		Source:       source,
		ResolvedOnly: true,
		Since:        asOf.AddDate(0, 0, -windowDays),
	})
	if err != nil {
		return cohortSummary{}, fmt.Errorf("list %s cohort: %w", source, err)
	}

	summary := cohortSummary{samples: len(snaps)}
	if len(snaps) == 0 {
		return summary, nil
	}

	hits := 0
	confidenceSum := 0.0
	for _, snap := range snaps {
		if snap.Hit {
			hits++
		}
		confidenceSum += snap.Confidence
	}

	summary.hitRate = float64(hits) / float64(len(snaps))
	summary.calibration = math.Abs(confidenceSum/float64(len(snaps)) - summary.hitRate)
	return summary, nil
}

func gradeDelta(delta float64) Severity {
	switch {
	case delta >= criticalThreshold:
		return SeverityCritical
	case delta >= highThreshold:
		return SeverityHigh
	case delta >= moderateThreshold:
		return SeverityModerate
	case delta >= lowThreshold:
		return SeverityLow
	}
	return SeverityNone
}

func recommendationFor(s Severity) string {
	switch s {
	case SeverityNone, SeverityLow:
		return "cohorts agree; applies unblocked"
	case SeverityModerate:
		return "monitor drift; applies allowed"
	case SeverityHigh:
		return "drift above limit; applies blocked until cohorts reconverge"
	default:
		return "crisis-level divergence; applies blocked, review cohort data"
	}
}
