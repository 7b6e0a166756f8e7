package policy

// DefaultWeights returns the baseline policy content installed when a
// symbol is first seen. Structure dominates the tier blend; crisis
// regimes and severe divergence are discounted hard.
func DefaultWeights() Weights {
	return Weights{
		TierWeights: map[string]float64{
			TierStructure: 0.50,
			TierTactical:  0.30,
			TierTiming:    0.20,
		},
		HorizonWeights: map[string]float64{
			"1d":  0.20,
			"7d":  0.35,
			"30d": 0.45,
		},
		RegimeMultipliers: map[string]float64{
			RegimeLow:       1.00,
			RegimeNormal:    1.00,
			RegimeHigh:      0.85,
			RegimeExpansion: 0.90,
			RegimeCrisis:    0.60,
		},
		DivergencePenalties: map[string]float64{
			"NONE":     1.00,
			"MILD":     0.95,
			"MODERATE": 0.85,
			"SEVERE":   0.70,
		},
		PhaseGradeMultipliers: map[string]float64{
			"A": 1.10,
			"B": 1.00,
			"C": 0.90,
			"D": 0.75,
		},
	}
}
