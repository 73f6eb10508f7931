package valuation

import (
	"errors"
	"fmt"
	"strings"
)

// MissingPolicy decides what happens to a model the backend did not compute
type MissingPolicy int

const (
	// TreatAsZero counts an absent model as 0. This silently drags the
	// target price down and is kept as the default for parity with the
	// existing front end.
	TreatAsZero MissingPolicy = iota
	// ExcludeFromWeightSum drops absent models and spreads their weight
	// over the present ones, keeping the configured weight total.
	ExcludeFromWeightSum
	// Fail refuses to aggregate when any model is absent.
	Fail
)

func (p MissingPolicy) String() string {
	switch p {
	case TreatAsZero:
		return "treat_as_zero"
	case ExcludeFromWeightSum:
		return "exclude_from_weight_sum"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseMissingPolicy parses the profile spelling of a policy
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "treat_as_zero", "zero":
		return TreatAsZero, nil
	case "exclude_from_weight_sum", "exclude":
		return ExcludeFromWeightSum, nil
	case "fail":
		return Fail, nil
	}
	return 0, fmt.Errorf("unknown missing-model policy %q", s)
}

// ErrMissingModel is returned under the Fail policy
var ErrMissingModel = errors.New("model value missing")

// WeightedAverage combines the four model values positionally as
// sum(value_i * weight_i / 100).
//
// Weights are NOT renormalized: a 120% total inflates the target, a 50%
// total deflates it. Absent models are handled by policy; under the
// default TreatAsZero they contribute 0 without any error.
func WeightedAverage(results ModelResults, weights ModelWeights, policy MissingPolicy) (float64, error) {
	var sum, presentWeight float64
	var missing []string

	for _, m := range Models {
		v, ok := results.Get(m)
		if !ok {
			missing = append(missing, m.Key())
			continue
		}
		w := weights.Get(m)
		sum += v * (w / 100)
		presentWeight += w
	}

	if len(missing) == 0 {
		return sum, nil
	}

	switch policy {
	case Fail:
		return 0, fmt.Errorf("%w: %s", ErrMissingModel, strings.Join(missing, ", "))
	case ExcludeFromWeightSum:
		if presentWeight == 0 {
			return 0, nil
		}
		return sum * weights.Total() / presentWeight, nil
	default:
		return sum, nil
	}
}
