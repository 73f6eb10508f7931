package valuation

import "errors"

// Options tune Evaluate
type Options struct {
	Policy          MissingPolicy
	Thresholds      Thresholds
	WeightTolerance float64
}

// DefaultOptions matches the behaviour of the existing front end
func DefaultOptions() Options {
	return Options{
		Policy:          TreatAsZero,
		Thresholds:      DefaultThresholds(),
		WeightTolerance: DefaultWeightTolerance,
	}
}

// Outcome is everything derived from one set of model values
type Outcome struct {
	WeightedValue    float64         `json:"weighted_value"`
	CurrentPrice     float64         `json:"current_price"`
	Upside           *float64        `json:"upside_pct"` // nil when the price is zero
	Recommendation   *Recommendation `json:"recommendation,omitempty"`
	WeightTotal      float64         `json:"weight_total"`
	WeightTotalValid bool            `json:"weight_total_valid"`
	MissingModels    []string        `json:"missing_models,omitempty"`
}

// UpsideDefined reports whether the upside could be computed
func (o Outcome) UpsideDefined() bool {
	return o.Upside != nil
}

// Evaluate computes the weighted target, the upside against currentPrice and
// the recommendation. engineLabel is the backend's recommendation text, if
// any; it takes precedence over the local thresholds.
//
// A zero price is not an error: the outcome carries an undefined upside and
// only a backend-supplied recommendation. The only error is ErrMissingModel
// under the Fail policy.
func Evaluate(results ModelResults, weights ModelWeights, currentPrice float64, engineLabel string, opts Options) (Outcome, error) {
	weighted, err := WeightedAverage(results, weights, opts.Policy)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		WeightedValue:    weighted,
		CurrentPrice:     currentPrice,
		WeightTotal:      weights.Total(),
		WeightTotalValid: weights.IsTotalValidWithin(opts.WeightTolerance),
	}
	for _, m := range results.Missing() {
		out.MissingModels = append(out.MissingModels, m.Key())
	}

	up, err := UpsidePercent(weighted, currentPrice)
	switch {
	case err == nil:
		out.Upside = &up
	case errors.Is(err, ErrZeroPrice):
		// leave Upside nil
	default:
		return Outcome{}, err
	}

	if rec, ok := opts.Thresholds.Resolve(engineLabel, out.Upside); ok {
		out.Recommendation = &rec
	}

	return out, nil
}
