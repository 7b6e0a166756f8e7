package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spxcore/fractal/pkg/outcomes"
	"spxcore/fractal/pkg/policy"
)

// Method is the identifier recorded on every simulation result this
// package produces.
const Method = "shadow_replay"

// Defaults for the replay gate.
const (
	// MinReplaySamples is the floor of resolved samples for a meaningful
	// replay; below it the simulation fails rather than guessing.
	MinReplaySamples = 20

	// RegressionTolerance is how far the candidate's weighted hit rate
	// may fall below the baseline's before the replay fails.
	RegressionTolerance = 0.01
)

// Result is the outcome of one simulation run.
type Result struct {
	Method  string             `json:"method"`
	Passed  bool               `json:"passed"`
	Notes   []string           `json:"notes"`
	Metrics map[string]float64 `json:"metrics"`
}

// Replayer replays resolved outcomes under baseline and candidate
// weights. It implements the simulator contract the proposal engine
// consumes.
type Replayer struct {
	store  outcomes.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewReplayer creates a new shadow replayer.
func NewReplayer(store outcomes.Store) *Replayer {
	return &Replayer{
		store:  store,
		logger: slog.Default().With("component", "simulation.replayer"),
		now:    time.Now,
	}
}

// Simulate scores every resolved snapshot in the window under both
// weight sets and compares the score-weighted hit rates. The candidate
// passes when it does not regress the baseline beyond tolerance.
//
// A cancelled or expired context is returned as an error; callers must
// treat that as "simulation unavailable", never as a pass.
func (r *Replayer) Simulate(ctx context.Context, symbol string, baseline, candidate policy.Weights, windowDays int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if windowDays <= 0 {
		windowDays = 90
	}

	snaps, err := r.store.List(ctx, outcomes.Filter{
		Symbol:       symbol,
		Source:       outcomes.SourceLive,
		ResolvedOnly: true,
		Since:        r.now().UTC().AddDate(0, 0, -windowDays),
	})
	if err != nil {
		return nil, fmt.Errorf("list resolved snapshots: %w", err)
	}

	result := &Result{
		Method:  Method,
		Metrics: map[string]float64{"samples": float64(len(snaps))},
	}

	if len(snaps) < MinReplaySamples {
		result.Passed = false
		result.Notes = append(result.Notes, fmt.Sprintf(
			"insufficient replay samples: %d resolved, need %d", len(snaps), MinReplaySamples))
		return result, nil
	}

	baseHitRate := weightedHitRate(snaps, baseline)
	candHitRate := weightedHitRate(snaps, candidate)

	result.Metrics["baselineHitRate"] = baseHitRate
	result.Metrics["candidateHitRate"] = candHitRate
	result.Metrics["hitRateDelta"] = candHitRate - baseHitRate

	if candHitRate+RegressionTolerance < baseHitRate {
		result.Passed = false
		result.Notes = append(result.Notes, fmt.Sprintf(
			"candidate regresses weighted hit rate: %.4f -> %.4f", baseHitRate, candHitRate))
	} else {
		result.Passed = true
		result.Notes = append(result.Notes, fmt.Sprintf(
			"candidate weighted hit rate %.4f vs baseline %.4f over %d samples",
			candHitRate, baseHitRate, len(snaps)))
	}

	r.logger.Debug("shadow replay complete",
		"symbol", symbol,
		"samples", len(snaps),
		"passed", result.Passed,
	)
	return result, nil
}

// weightedHitRate scores each snapshot by the confidence the weight set
// would have assigned it, and returns the score-weighted hit rate.
func weightedHitRate(snaps []*outcomes.Snapshot, w policy.Weights) float64 {
	var weightSum, hitSum float64
	for _, snap := range snaps {
		score := snapshotScore(snap, w)
		if score <= 0 {
			continue
		}
		weightSum += score
		if snap.Hit {
			hitSum += score
		}
	}
	if weightSum == 0 {
		return 0
	}
	return hitSum / weightSum
}

func snapshotScore(snap *outcomes.Snapshot, w policy.Weights) float64 {
	score := snap.Confidence
	if v, ok := w.TierWeights[snap.Tier]; ok {
		score *= v
	}
	if v, ok := w.HorizonWeights[snap.Horizon]; ok {
		score *= v
	}
	if v, ok := w.RegimeMultipliers[snap.Regime]; ok {
		score *= v
	}
	if v, ok := w.DivergencePenalties[snap.Divergence]; ok {
		score *= v
	}
	if v, ok := w.PhaseGradeMultipliers[snap.PhaseGrade]; ok {
		score *= v
	}
	return score
}
