package profile

import (
	"github.com/wonny/vnvalue/internal/valuation"
)

// Profile is the valuation policy a session starts from.
// ⭐ SSOT: default assumptions, weights and thresholds live here, not in handlers.
type Profile struct {
	Meta            Meta                   `yaml:"meta" json:"meta"`
	Assumptions     valuation.Assumptions  `yaml:"assumptions" json:"assumptions"`
	Weights         valuation.ModelWeights `yaml:"weights" json:"weights"`
	Thresholds      valuation.Thresholds   `yaml:"thresholds" json:"thresholds"`
	WeightTolerance float64                `yaml:"weight_tolerance" json:"weight_tolerance"`
	MissingPolicy   string                 `yaml:"missing_policy" json:"missing_policy"`
}

// Meta identifies a profile
type Meta struct {
	ProfileID   string `yaml:"profile_id" json:"profile_id"`
	Description string `yaml:"description" json:"description"`
}

// Default returns the built-in profile used when no YAML file is configured
func Default() *Profile {
	return &Profile{
		Meta: Meta{
			ProfileID:   "default",
			Description: "equal weights, ±15% thresholds",
		},
		Assumptions:     valuation.DefaultAssumptions(),
		Weights:         valuation.EqualWeights(),
		Thresholds:      valuation.DefaultThresholds(),
		WeightTolerance: valuation.DefaultWeightTolerance,
		MissingPolicy:   valuation.TreatAsZero.String(),
	}
}

// Options converts the profile into aggregator options.
// The profile must have passed Validate.
func (p *Profile) Options() valuation.Options {
	policy, _ := valuation.ParseMissingPolicy(p.MissingPolicy)
	return valuation.Options{
		Policy:          policy,
		Thresholds:      p.Thresholds,
		WeightTolerance: p.WeightTolerance,
	}
}
