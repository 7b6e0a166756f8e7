package governance

import (
	"fmt"

	"spxcore/fractal/pkg/outcomes"
)

// MinLiveSamples is the resolved LIVE sample floor below which no policy
// change may be applied, regardless of any other signal.
const MinLiveSamples = 30

// EvaluateLock is the governance lock: a pure decision function over the
// live eligibility signals. CanApply is the conjunction of four
// conditions; every failing condition contributes a human-readable
// reason.
//
// The same function backs both the read-only status probe and the gate
// inside apply, so the preview can never drift from enforcement.
func EvaluateLock(signals LockSignals) *LockStatus {
	status := &LockStatus{
		LiveSamples:       signals.LiveSamples,
		MinRequired:       MinLiveSamples,
		DriftSeverity:     signals.DriftSeverity,
		ContractHashMatch: signals.ContractHashMatch,
		ProposalSource:    signals.ProposalSource,
		IsLiveOnly:        signals.ProposalSource == outcomes.SourceLive,
	}

	if !status.IsLiveOnly {
		status.Reasons = append(status.Reasons, fmt.Sprintf(
			"proposal source is %s; only LIVE-sourced proposals may be applied", signals.ProposalSource))
	}

	if signals.LiveSamples < MinLiveSamples {
		status.Reasons = append(status.Reasons, fmt.Sprintf(
			"%d resolved live samples, minimum %d required", signals.LiveSamples, MinLiveSamples))
	}

	if signals.DriftSeverity.Blocking() {
		status.Reasons = append(status.Reasons, fmt.Sprintf(
			"cohort drift severity %s blocks applies", signals.DriftSeverity))
	}

	if !signals.ContractHashMatch {
		status.Reasons = append(status.Reasons,
			"proposal contract hash does not match the running policy schema")
	}

	status.CanApply = len(status.Reasons) == 0
	return status
}
