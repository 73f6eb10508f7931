package profile

import (
	"fmt"
	"math"

	"github.com/wonny/vnvalue/internal/valuation"
)

// ValidationError reports the first invalid field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the hard constraints of a profile.
// Assumption values are passed to the engine as-is and are only checked for
// being finite; projection years must be positive.
func Validate(p *Profile) error {
	// === Meta ===
	if p.Meta.ProfileID == "" {
		return ValidationError{"meta.profile_id", "required"}
	}

	// === Assumptions ===
	a := p.Assumptions
	for _, f := range []struct {
		field string
		v     float64
	}{
		{"assumptions.revenue_growth", a.RevenueGrowth},
		{"assumptions.terminal_growth", a.TerminalGrowth},
		{"assumptions.wacc", a.WACC},
		{"assumptions.required_return", a.RequiredReturn},
		{"assumptions.tax_rate", a.TaxRate},
		{"assumptions.roe", a.ROE},
		{"assumptions.payout_ratio", a.PayoutRatio},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return ValidationError{f.field, "must be finite"}
		}
	}
	if a.ProjectionYears < 1 {
		return ValidationError{"assumptions.projection_years", "must be >= 1"}
	}

	// === Weights ===
	for _, m := range valuation.Models {
		w := p.Weights.Get(m)
		if math.IsNaN(w) || w < 0 || w > 100 {
			return ValidationError{"weights." + m.Key(), "must be in range [0, 100]"}
		}
	}

	// === Thresholds ===
	if p.Thresholds.Buy < 0 {
		return ValidationError{"thresholds.buy", "must be >= 0"}
	}
	if p.Thresholds.Sell > 0 {
		return ValidationError{"thresholds.sell", "must be <= 0"}
	}

	if p.WeightTolerance < 0 {
		return ValidationError{"weight_tolerance", "must be >= 0"}
	}

	if _, err := valuation.ParseMissingPolicy(p.MissingPolicy); err != nil {
		return ValidationError{"missing_policy", "must be treat_as_zero, exclude_from_weight_sum or fail"}
	}

	return nil
}

// Warning is a non-fatal profile observation
type Warning struct {
	Code    string
	Message string
}

// Warn lists recommended constraints the profile breaks
func Warn(p *Profile) []Warning {
	var warnings []Warning

	if !p.Weights.IsTotalValidWithin(p.WeightTolerance) {
		warnings = append(warnings, Warning{
			Code:    "WEIGHT_TOTAL",
			Message: fmt.Sprintf("default weights total %.2f%%, target price will not be a blend", p.Weights.Total()),
		})
	}

	if p.Assumptions.TerminalGrowth >= p.Assumptions.WACC {
		warnings = append(warnings, Warning{
			Code:    "TERMINAL_GROWTH",
			Message: "terminal growth >= WACC: FCFF terminal value is undefined",
		})
	}

	if p.MissingPolicy == "" || p.MissingPolicy == valuation.TreatAsZero.String() {
		warnings = append(warnings, Warning{
			Code:    "MISSING_AS_ZERO",
			Message: "models the engine cannot compute count as 0 in the target price",
		})
	}

	return warnings
}
