package learning

import (
	"time"

	"spxcore/fractal/pkg/outcomes"
)

// BucketStats summarizes resolved outcomes for one tier or regime bucket.
type BucketStats struct {
	Samples       int     `json:"samples"`
	Hits          int     `json:"hits"`
	HitRate       float64 `json:"hitRate"`
	AvgConfidence float64 `json:"avgConfidence"`
}

// PhaseStats summarizes resolved outcomes for one phase grade.
type PhaseStats struct {
	Grade   string  `json:"grade"`
	Samples int     `json:"samples"`
	HitRate float64 `json:"hitRate"`
}

// Query selects the cohort and window a learning vector is computed from.
type Query struct {
	Symbol     string
	WindowDays int
	Preset     string // conservative | balanced | aggressive
	Role       string // ACTIVE | SHADOW
	Source     outcomes.Source
}

// Vector is the aggregated learning signal for one symbol/window/cohort.
type Vector struct {
	Symbol          string          `json:"symbol"`
	WindowDays      int             `json:"windowDays"`
	AsOf            time.Time       `json:"asof"`
	Preset          string          `json:"preset"`
	Role            string          `json:"role"`
	Source          outcomes.Source `json:"source"`
	ResolvedSamples int             `json:"resolvedSamples"`

	Tier   map[string]BucketStats `json:"tier"`
	Regime map[string]BucketStats `json:"regime"`
	Phase  []PhaseStats           `json:"phase"`

	// DivergenceImpact is the hit-rate drag of diverging samples against
	// the overall baseline. Negative means divergence hurts accuracy.
	DivergenceImpact float64 `json:"divergenceImpact"`

	// CalibrationError is the sample-weighted gap between stated
	// confidence and realized hit rate.
	CalibrationError float64 `json:"calibrationError"`

	LearningEligible   bool     `json:"learningEligible"`
	EligibilityReasons []string `json:"eligibilityReasons"`

	DominantTier   string `json:"dominantTier"`
	DominantRegime string `json:"dominantRegime"`
}
