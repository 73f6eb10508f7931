package session

import (
	"time"

	"github.com/wonny/vnvalue/internal/external/engine"
	"github.com/wonny/vnvalue/internal/valuation"
)

// State is the session lifecycle stage
type State string

const (
	StateEmpty  State = "empty"
	StateLoaded State = "loaded"
	StateValued State = "valued"
)

// NoticeLevel classifies a transient message
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient user-facing message
type Notice struct {
	ID        uint64      `json:"id"`
	Level     NoticeLevel `json:"level"`
	Message   string      `json:"message"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Snapshot is an immutable view of the session.
// Values reachable from a Snapshot are never mutated after publication.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Version   uint64    `json:"version"`
	State     State     `json:"state"`
	Pending   string    `json:"pending,omitempty"` // "load" or "calculate" while a request is in flight
	UpdatedAt time.Time `json:"updated_at"`

	Symbol     string                   `json:"symbol,omitempty"`
	Period     engine.Period            `json:"period,omitempty"`
	Company    *engine.CompanySnapshot  `json:"company,omitempty"`
	Historical *engine.HistoricalSeries `json:"historical,omitempty"`

	Assumptions valuation.Assumptions  `json:"assumptions"`
	Weights     valuation.ModelWeights `json:"weights"`
	// AssumptionsChanged is set when assumptions were edited after the last
	// calculation; the model values no longer reflect them.
	AssumptionsChanged bool `json:"assumptions_changed"`

	Results               *valuation.ModelResults  `json:"results,omitempty"`
	EngineWeightedAverage *float64                 `json:"engine_weighted_average,omitempty"`
	FinancialData         *engine.FinancialData    `json:"financial_data,omitempty"`
	MarketComparison      *engine.MarketComparison `json:"market_comparison,omitempty"`
	EngineSummary         *engine.Summary          `json:"engine_summary,omitempty"`
	Outcome               *valuation.Outcome       `json:"outcome,omitempty"`

	Notice *Notice `json:"notice,omitempty"`
}

// SharesOutstanding prefers the market snapshot's count over the engine's
func (s Snapshot) SharesOutstanding() (float64, bool) {
	var market, eng *float64
	if s.Company != nil {
		market = s.Company.SharesOutstanding
	}
	if s.FinancialData != nil {
		eng = s.FinancialData.SharesOutstanding
	}
	return valuation.PickShares(market, eng)
}

// EquityValue returns the equity value of a cash-flow model
func (s Snapshot) EquityValue(m valuation.Model) (float64, bool) {
	if s.Results == nil {
		return 0, false
	}
	shares, ok := s.SharesOutstanding()
	if !ok {
		return 0, false
	}
	return s.Results.EquityValue(m, shares)
}
