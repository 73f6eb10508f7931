package valuation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Model identifies one of the four per-share valuation models
type Model int

const (
	FCFE Model = iota
	FCFF
	JustifiedPE
	JustifiedPB
)

// Models lists every model in display order
var Models = [...]Model{FCFE, FCFF, JustifiedPE, JustifiedPB}

// Key returns the wire key used by the valuation backend
func (m Model) Key() string {
	switch m {
	case FCFE:
		return "fcfe"
	case FCFF:
		return "fcff"
	case JustifiedPE:
		return "justified_pe"
	case JustifiedPB:
		return "justified_pb"
	default:
		return fmt.Sprintf("model(%d)", int(m))
	}
}

// String returns the display name
func (m Model) String() string {
	switch m {
	case FCFE:
		return "FCFE"
	case FCFF:
		return "FCFF"
	case JustifiedPE:
		return "Justified P/E"
	case JustifiedPB:
		return "Justified P/B"
	default:
		return m.Key()
	}
}

// ErrUnknownModel is returned by ParseModel
var ErrUnknownModel = errors.New("unknown valuation model")

// ParseModel maps a wire key (fcfe, fcff, justified_pe, justified_pb) to a Model
func ParseModel(key string) (Model, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, m := range Models {
		if m.Key() == k {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownModel, key)
}

// DefaultWeightTolerance is how far the weight total may drift from 100
// before it is flagged
const DefaultWeightTolerance = 0.1

// ErrWeightOutOfRange is returned when a weight is outside [0, 100]
var ErrWeightOutOfRange = errors.New("weight must be between 0 and 100")

// ModelWeights holds one percentage per model.
// The total is expected to be 100 but is never enforced.
type ModelWeights struct {
	FCFE        float64 `json:"fcfe" yaml:"fcfe"`
	FCFF        float64 `json:"fcff" yaml:"fcff"`
	JustifiedPE float64 `json:"justified_pe" yaml:"justified_pe"`
	JustifiedPB float64 `json:"justified_pb" yaml:"justified_pb"`
}

// EqualWeights returns 25/25/25/25
func EqualWeights() ModelWeights {
	return ModelWeights{FCFE: 25, FCFF: 25, JustifiedPE: 25, JustifiedPB: 25}
}

// Get returns the weight of m
func (w ModelWeights) Get(m Model) float64 {
	switch m {
	case FCFE:
		return w.FCFE
	case FCFF:
		return w.FCFF
	case JustifiedPE:
		return w.JustifiedPE
	case JustifiedPB:
		return w.JustifiedPB
	}
	return 0
}

// Set updates the weight of m. Values outside [0, 100] are rejected.
func (w *ModelWeights) Set(m Model, pct float64) error {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return fmt.Errorf("%w: %s=%v", ErrWeightOutOfRange, m.Key(), pct)
	}

	switch m {
	case FCFE:
		w.FCFE = pct
	case FCFF:
		w.FCFF = pct
	case JustifiedPE:
		w.JustifiedPE = pct
	case JustifiedPB:
		w.JustifiedPB = pct
	default:
		return fmt.Errorf("%w: %d", ErrUnknownModel, int(m))
	}
	return nil
}

// Total returns the sum of the four weights
func (w ModelWeights) Total() float64 {
	return w.FCFE + w.FCFF + w.JustifiedPE + w.JustifiedPB
}

// Validate checks every weight lies in [0, 100]
func (w ModelWeights) Validate() error {
	for _, m := range Models {
		v := w.Get(m)
		if math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("%w: %s=%v", ErrWeightOutOfRange, m.Key(), v)
		}
	}
	return nil
}

// IsWeightTotalValid reports whether the total is within 0.1 of 100.
// Advisory only: calculation never depends on it.
func IsWeightTotalValid(w ModelWeights) bool {
	return w.IsTotalValidWithin(DefaultWeightTolerance)
}

// IsTotalValidWithin reports whether |total-100| <= tolerance
func (w ModelWeights) IsTotalValidWithin(tolerance float64) bool {
	return math.Abs(w.Total()-100) <= tolerance
}

// ModelResults holds the per-share value of each model.
// A nil field means the backend could not compute that model.
type ModelResults struct {
	FCFE        *float64 `json:"fcfe"`
	FCFF        *float64 `json:"fcff"`
	JustifiedPE *float64 `json:"justified_pe"`
	JustifiedPB *float64 `json:"justified_pb"`
}

// Get returns the value of m and whether it is present
func (r ModelResults) Get(m Model) (float64, bool) {
	var p *float64
	switch m {
	case FCFE:
		p = r.FCFE
	case FCFF:
		p = r.FCFF
	case JustifiedPE:
		p = r.JustifiedPE
	case JustifiedPB:
		p = r.JustifiedPB
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// With returns a copy with m set to v
func (r ModelResults) With(m Model, v float64) ModelResults {
	switch m {
	case FCFE:
		r.FCFE = &v
	case FCFF:
		r.FCFF = &v
	case JustifiedPE:
		r.JustifiedPE = &v
	case JustifiedPB:
		r.JustifiedPB = &v
	}
	return r
}

// Missing lists the models without a value
func (r ModelResults) Missing() []Model {
	var missing []Model
	for _, m := range Models {
		if _, ok := r.Get(m); !ok {
			missing = append(missing, m)
		}
	}
	return missing
}

// Clone returns a deep copy so callers cannot alias stored values
func (r ModelResults) Clone() ModelResults {
	var out ModelResults
	for _, m := range Models {
		if v, ok := r.Get(m); ok {
			out = out.With(m, v)
		}
	}
	return out
}

// EquityValue is the per-share value times shares outstanding.
// Only the cash-flow models (FCFE, FCFF) carry an equity value.
func (r ModelResults) EquityValue(m Model, shares float64) (float64, bool) {
	if m != FCFE && m != FCFF {
		return 0, false
	}
	v, ok := r.Get(m)
	if !ok || shares <= 0 {
		return 0, false
	}
	return v * shares, true
}

// PickShares prefers the market snapshot's share count over the backend's
func PickShares(market, engine *float64) (float64, bool) {
	if market != nil && *market > 0 {
		return *market, true
	}
	if engine != nil && *engine > 0 {
		return *engine, true
	}
	return 0, false
}

// Assumptions drive the backend models. They are passed through untouched;
// nonsensical combinations (terminal growth >= WACC) are the backend's concern.
type Assumptions struct {
	RevenueGrowth   float64 `json:"revenue_growth" yaml:"revenue_growth"`
	TerminalGrowth  float64 `json:"terminal_growth" yaml:"terminal_growth"`
	WACC            float64 `json:"wacc" yaml:"wacc"`
	RequiredReturn  float64 `json:"required_return" yaml:"required_return"`
	TaxRate         float64 `json:"tax_rate" yaml:"tax_rate"`
	ProjectionYears int     `json:"projection_years" yaml:"projection_years"`
	ROE             float64 `json:"roe" yaml:"roe"`
	PayoutRatio     float64 `json:"payout_ratio" yaml:"payout_ratio"`
}

// DefaultAssumptions returns the stock defaults (all percentages)
func DefaultAssumptions() Assumptions {
	return Assumptions{
		RevenueGrowth:   8.0,
		TerminalGrowth:  3.0,
		WACC:            10.5,
		RequiredReturn:  12.0,
		TaxRate:         20.0,
		ProjectionYears: 5,
		ROE:             15.0,
		PayoutRatio:     40.0,
	}
}
