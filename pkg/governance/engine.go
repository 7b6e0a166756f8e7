package governance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"spxcore/fractal/pkg/learning"
	"spxcore/fractal/pkg/policy"
	"spxcore/fractal/pkg/simulation"
)

// EngineConfig tunes candidate derivation and the proposal quality
// gates.
type EngineConfig struct {
	// LearningRate scales how far a bucket's hit-rate edge moves its
	// weight.
	LearningRate float64

	// MaxWeightDelta caps any single field change per proposal.
	MaxWeightDelta float64

	// HoldTolerance is the no-op band: when every delta is smaller, the
	// verdict is HOLD.
	HoldTolerance float64

	// MedRiskDelta is the delta magnitude above which a clean proposal
	// is graded MED instead of LOW.
	MedRiskDelta float64

	// MinProposalSamples is the resolved-sample floor for proposal
	// creation quality (distinct from the apply-time live-sample floor).
	MinProposalSamples int
}

// DefaultEngineConfig returns the default engine tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LearningRate:       0.20,
		MaxWeightDelta:     0.05,
		HoldTolerance:      0.005,
		MedRiskDelta:       0.03,
		MinProposalSamples: 20,
	}
}

// Engine builds candidate policies from learning vectors. It has no side
// effects on any store.
type Engine struct {
	config EngineConfig
	sim    Simulator
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a new proposal engine.
func NewEngine(config EngineConfig, sim Simulator) *Engine {
	return &Engine{
		config: config,
		sim:    sim,
		logger: slog.Default().With("component", "governance.engine"),
		now:    time.Now,
	}
}

// Propose derives a candidate policy from the learning vector and the
// current policy, evaluates guardrails, runs the simulation, and returns
// the proposal in status PROPOSED.
//
// A failed simulation still yields a proposal (visible and diagnosable)
// with guardrails forced ineligible. A simulation that cannot run at all
// returns a SimulationUnavailableError and no proposal.
func (e *Engine) Propose(ctx context.Context, vector *learning.Vector, current *policy.Policy, scope Scope) (*Proposal, error) {
	candidate := e.deriveCandidate(vector, current.Content)
	deltas := computeDeltas(current.Content, candidate)

	simResult, err := e.sim.Simulate(ctx, vector.Symbol, current.Content, candidate, scope.WindowDays)
	if err != nil {
		return nil, &SimulationUnavailableError{Symbol: vector.Symbol, Cause: err}
	}

	guardrails := e.evaluateGuardrails(vector, simResult.Passed)

	maxDelta := maxAbsDelta(deltas)
	verdict := e.deriveVerdict(simResult.Metrics["hitRateDelta"], maxDelta)
	risk := e.deriveRisk(guardrails.Eligible, simResult.Passed, maxDelta)

	p := &Proposal{
		ID:             uuid.NewString(),
		Symbol:         vector.Symbol,
		Source:         vector.Source,
		Scope:          scope,
		Status:         StatusProposed,
		Verdict:        verdict,
		Risk:           risk,
		Summary:        e.summarize(vector, verdict, len(deltas)),
		ExpectedImpact: simResult.Metrics["hitRateDelta"],
		Deltas:         deltas,
		Guardrails:     guardrails,
		Simulation:     simResult,
		ContractHash:   policy.ContractHash(),
		CurrentPolicy:  current.Clone(),
		ProposedPolicy: candidate,
		ProposedHash:   policy.HashWeights(candidate),
		CreatedAt:      e.now().UTC(),
	}

	e.logger.Info("proposal built",
		"proposal_id", p.ID,
		"symbol", p.Symbol,
		"source", p.Source,
		"verdict", p.Verdict,
		"risk", p.Risk,
		"deltas", len(p.Deltas),
		"eligible", p.Guardrails.Eligible,
	)
	return p, nil
}

// deriveCandidate nudges weights toward the vector's measured edges.
// Every adjustment is capped by MaxWeightDelta; tier weights are
// renormalized so they keep summing to one.
func (e *Engine) deriveCandidate(vector *learning.Vector, base policy.Weights) policy.Weights {
	candidate := base.Clone()

	for tier, stats := range vector.Tier {
		if stats.Samples < learning.MinSamplesPerTier {
			continue
		}
		current, ok := candidate.TierWeights[tier]
		if !ok {
			continue
		}
		shift := clamp(e.config.LearningRate*(stats.HitRate-0.5), -e.config.MaxWeightDelta, e.config.MaxWeightDelta)
		candidate.TierWeights[tier] = math.Max(0.05, current+shift)
	}
	normalize(candidate.TierWeights)

	for regime, stats := range vector.Regime {
		if stats.Samples < learning.MinSamplesPerTier {
			continue
		}
		current, ok := candidate.RegimeMultipliers[regime]
		if !ok {
			continue
		}
		shift := clamp(e.config.LearningRate*(stats.HitRate-0.5), -e.config.MaxWeightDelta, e.config.MaxWeightDelta)
		candidate.RegimeMultipliers[regime] = clamp(current+shift, 0.20, 1.25)
	}

	// Divergence dragging accuracy down tightens the penalties.
	if vector.DivergenceImpact < -0.05 {
		tighten := clamp(e.config.LearningRate*-vector.DivergenceImpact, 0, e.config.MaxWeightDelta)
		for _, grade := range []string{"MODERATE", "SEVERE"} {
			if current, ok := candidate.DivergencePenalties[grade]; ok {
				candidate.DivergencePenalties[grade] = math.Max(0.50, current-tighten)
			}
		}
	}

	return candidate
}

// evaluateGuardrails applies the proposal-creation quality gates. A
// failed simulation forces ineligibility even when every statistical
// gate passes.
func (e *Engine) evaluateGuardrails(vector *learning.Vector, simPassed bool) Guardrails {
	g := Guardrails{Checks: make(map[string]bool)}

	g.Checks["minSamples"] = vector.ResolvedSamples >= e.config.MinProposalSamples
	if !g.Checks["minSamples"] {
		g.Reasons = append(g.Reasons, fmt.Sprintf(
			"%d resolved samples, proposal floor is %d", vector.ResolvedSamples, e.config.MinProposalSamples))
	}

	g.Checks["calibration"] = vector.CalibrationError <= learning.MaxCalibrationError
	if !g.Checks["calibration"] {
		g.Reasons = append(g.Reasons, fmt.Sprintf(
			"calibration error %.3f exceeds ceiling %.2f", vector.CalibrationError, learning.MaxCalibrationError))
	}

	g.Checks["learningEligible"] = vector.LearningEligible
	if !vector.LearningEligible {
		g.Reasons = append(g.Reasons, vector.EligibilityReasons...)
	}

	g.Checks["simulationPassed"] = simPassed
	if !simPassed {
		g.Reasons = append(g.Reasons, "simulation did not pass; proposal is diagnostic only")
	}

	g.Eligible = g.Checks["minSamples"] && g.Checks["calibration"] &&
		g.Checks["learningEligible"] && g.Checks["simulationPassed"]
	return g
}

func (e *Engine) deriveVerdict(hitRateDelta, maxDelta float64) Verdict {
	if hitRateDelta < -simulation.RegressionTolerance {
		return VerdictRollback
	}
	if maxDelta < e.config.HoldTolerance {
		return VerdictHold
	}
	return VerdictTune
}

func (e *Engine) deriveRisk(eligible, simPassed bool, maxDelta float64) Risk {
	if !eligible || !simPassed {
		return RiskHigh
	}
	if maxDelta > e.config.MedRiskDelta {
		return RiskMed
	}
	return RiskLow
}

func (e *Engine) summarize(vector *learning.Vector, verdict Verdict, deltaCount int) string {
	switch verdict {
	case VerdictHold:
		return fmt.Sprintf("weights within tolerance over %d resolved samples; no change recommended",
			vector.ResolvedSamples)
	case VerdictRollback:
		return fmt.Sprintf("candidate regresses the baseline over %d resolved samples; revert recommended",
			vector.ResolvedSamples)
	default:
		dominant := vector.DominantTier
		if dominant == "" {
			dominant = "no dominant tier"
		}
		return fmt.Sprintf("%d weight adjustments from %d resolved samples (dominant: %s)",
			deltaCount, vector.ResolvedSamples, dominant)
	}
}

// computeDeltas flattens both weight sets and lists every field that
// changed, ordered by field path.
func computeDeltas(from, to policy.Weights) []Delta {
	const epsilon = 1e-9

	fromFlat := flatten(from)
	toFlat := flatten(to)

	fields := make([]string, 0, len(fromFlat))
	for field := range fromFlat {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var deltas []Delta
	for _, field := range fields {
		before := fromFlat[field]
		after := toFlat[field]
		if math.Abs(after-before) > epsilon {
			deltas = append(deltas, Delta{Field: field, From: before, To: after})
		}
	}
	return deltas
}

func flatten(w policy.Weights) map[string]float64 {
	out := make(map[string]float64)
	groups := map[string]map[string]float64{
		"tierWeights":           w.TierWeights,
		"horizonWeights":        w.HorizonWeights,
		"regimeMultipliers":     w.RegimeMultipliers,
		"divergencePenalties":   w.DivergencePenalties,
		"phaseGradeMultipliers": w.PhaseGradeMultipliers,
	}
	for group, m := range groups {
		for key, value := range m {
			out[group+"."+key] = value
		}
	}
	return out
}

func maxAbsDelta(deltas []Delta) float64 {
	max := 0.0
	for _, d := range deltas {
		if abs := math.Abs(d.To - d.From); abs > max {
			max = abs
		}
	}
	return max
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalize rescales the map values to sum to one, leaving an empty or
// zero map untouched.
func normalize(m map[string]float64) {
	sum := 0.0
	for _, v := range m {
		sum += v
	}
	if sum <= 0 {
		return
	}
	for k, v := range m {
		m[k] = v / sum
	}
}
