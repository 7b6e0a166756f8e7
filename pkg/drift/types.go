package drift

import "time"

// Severity grades cohort divergence, ordered from none to critical.
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityLow      Severity = "LOW"
	SeverityModerate Severity = "MODERATE"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityModerate: 2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordering position of the severity; unknown severities
// rank highest so a malformed value can never unblock an apply.
func (s Severity) Rank() int {
	if rank, ok := severityRank[s]; ok {
		return rank
	}
	return severityRank[SeverityCritical]
}

// Blocking reports whether the severity sits in the tier that blocks
// policy applies.
func (s Severity) Blocking() bool {
	return s.Rank() >= severityRank[SeverityHigh]
}

// Comparison is the divergence measurement for one cohort pair.
type Comparison struct {
	Pair             string   `json:"pair"` // e.g. "LIVE/V2020"
	BaseSamples      int      `json:"baseSamples"`
	OtherSamples     int      `json:"otherSamples"`
	HitRateDelta     float64  `json:"hitRateDelta"`
	CalibrationDelta float64  `json:"calibrationDelta"`
	Severity         Severity `json:"severity"`
}

// Verdict is the overall drift assessment across all compared pairs.
type Verdict struct {
	OverallSeverity Severity `json:"overallSeverity"`
	Recommendation  string   `json:"recommendation"`
}

// Report is the full output of a cohort comparison.
type Report struct {
	Symbol      string       `json:"symbol"`
	WindowDays  int          `json:"windowDays"`
	AsOf        time.Time    `json:"asof"`
	Comparisons []Comparison `json:"comparisons"`
	Verdict     Verdict      `json:"verdict"`
}
