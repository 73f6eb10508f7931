package valuation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Action is the discrete investment call
type Action string

const (
	Buy  Action = "BUY"
	Hold Action = "HOLD"
	Sell Action = "SELL"
)

// Source records where a recommendation came from
type Source string

const (
	SourceEngine Source = "engine"
	SourceLocal  Source = "local"
)

// Recommendation is an Action plus its human-readable justification
type Recommendation struct {
	Action Action `json:"action"`
	Reason string `json:"reason"`
	Source Source `json:"source"`
	// Label is the backend's own wording when it supplied one, else the action
	Label string `json:"label"`
}

// Thresholds are the exclusive upside boundaries for BUY and SELL (percent)
type Thresholds struct {
	Buy  float64 `json:"buy" yaml:"buy"`
	Sell float64 `json:"sell" yaml:"sell"`
}

// DefaultThresholds returns +15 / -15
func DefaultThresholds() Thresholds {
	return Thresholds{Buy: 15, Sell: -15}
}

// ErrZeroPrice is returned when the upside is computed against a zero price
var ErrZeroPrice = errors.New("current price is zero: upside undefined")

// UpsidePercent returns (target-current)/current*100
func UpsidePercent(target, current float64) (float64, error) {
	if current == 0 {
		return 0, ErrZeroPrice
	}
	up := (target - current) / current * 100
	if math.IsNaN(up) || math.IsInf(up, 0) {
		return 0, fmt.Errorf("upside not finite for target=%v current=%v", target, current)
	}
	return up, nil
}

// Classify applies the default ±15% thresholds
func Classify(upside float64) Recommendation {
	return DefaultThresholds().Classify(upside)
}

// Classify maps an upside percentage to BUY / HOLD / SELL.
// Both boundaries are exclusive: exactly +15 or -15 is HOLD.
func (t Thresholds) Classify(upside float64) Recommendation {
	var action Action
	switch {
	case upside > t.Buy:
		action = Buy
	case upside < t.Sell:
		action = Sell
	default:
		action = Hold
	}
	return Recommendation{
		Action: action,
		Reason: t.Reason(action),
		Source: SourceLocal,
		Label:  string(action),
	}
}

// Reason returns the justification text for an action
func (t Thresholds) Reason(a Action) string {
	switch a {
	case Buy:
		return fmt.Sprintf("significant undervaluation — upside above %s%%", pct(t.Buy))
	case Sell:
		return fmt.Sprintf("significant overvaluation — downside above %s%%", pct(-t.Sell))
	default:
		if t.Buy == -t.Sell {
			return fmt.Sprintf("fairly valued — within ±%s%%", pct(t.Buy))
		}
		return fmt.Sprintf("fairly valued — within %s%% to +%s%%", pct(t.Sell), pct(t.Buy))
	}
}

func pct(v float64) string {
	return fmt.Sprintf("%g", v)
}

// CategoryOf derives the action from free-form backend text by substring
// test. BUY wins over SELL wins over HOLD; anything else is HOLD.
func CategoryOf(label string) Action {
	up := strings.ToUpper(label)
	switch {
	case strings.Contains(up, string(Buy)):
		return Buy
	case strings.Contains(up, string(Sell)):
		return Sell
	default:
		return Hold
	}
}

// Resolve prefers the backend's recommendation when present and falls back
// to local thresholding otherwise. ok is false only when neither source can
// produce a call (no backend label and no defined upside).
func (t Thresholds) Resolve(engineLabel string, upside *float64) (Recommendation, bool) {
	if label := strings.TrimSpace(engineLabel); label != "" {
		action := CategoryOf(label)
		return Recommendation{
			Action: action,
			Reason: t.Reason(action),
			Source: SourceEngine,
			Label:  label,
		}, true
	}

	if upside == nil {
		return Recommendation{}, false
	}
	return t.Classify(*upside), true
}
