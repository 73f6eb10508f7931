package engine

import (
	"github.com/wonny/vnvalue/internal/valuation"
)

// Period selects annual or quarterly statements for app-data
type Period string

const (
	PeriodYear    Period = "year"
	PeriodQuarter Period = "quarter"
)

// CompanySnapshot is the app-data payload.
// Every numeric field is optional; the engine sends null when it has no value.
type CompanySnapshot struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Exchange string `json:"exchange"`

	CurrentPrice      *float64 `json:"current_price"`
	MarketCap         *float64 `json:"market_cap"`
	EPS               *float64 `json:"eps"`
	BookValuePerShare *float64 `json:"book_value_per_share"`
	PERatio           *float64 `json:"pe_ratio"`
	PBRatio           *float64 `json:"pb_ratio"`
	PSRatio           *float64 `json:"ps_ratio"`
	EVEBITDA          *float64 `json:"ev_ebitda"`
	RevenueTTM        *float64 `json:"revenue_ttm"`
	NetIncomeTTM      *float64 `json:"net_income_ttm"`
	EBITDA            *float64 `json:"ebitda"`
	ROE               *float64 `json:"roe"`
	ROA               *float64 `json:"roa"`
	DebtToEquity      *float64 `json:"debt_to_equity"`
	CurrentRatio      *float64 `json:"current_ratio"`
	QuickRatio        *float64 `json:"quick_ratio"`
	CashRatio         *float64 `json:"cash_ratio"`
	InterestCoverage  *float64 `json:"interest_coverage"`
	GrossProfitMargin *float64 `json:"gross_profit_margin"`
	EBITMargin        *float64 `json:"ebit_margin"`
	NetProfitMargin   *float64 `json:"net_profit_margin"`
	SharesOutstanding *float64 `json:"shares_outstanding"`
	TotalDebt         *float64 `json:"total_debt"`
	DividendPerShare  *float64 `json:"dividend_per_share"`

	DataSource  string       `json:"data_source,omitempty"`
	DataQuality *DataQuality `json:"data_quality,omitempty"`
}

// Price returns the current price, 0 when absent
func (s *CompanySnapshot) Price() float64 {
	if s == nil || s.CurrentPrice == nil {
		return 0
	}
	return *s.CurrentPrice
}

// DataQuality flags which parts of the snapshot the engine trusts
type DataQuality struct {
	HasRealPrice  bool `json:"has_real_price"`
	HasFinancials bool `json:"has_financials"`
	PEReliable    bool `json:"pe_reliable"`
	PBReliable    bool `json:"pb_reliable"`
}

type appDataResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	CompanySnapshot
}

// HistoricalSeries holds per-period ratio series, oldest first.
// All series share the index of Periods; a series may be empty when the
// engine does not provide it.
type HistoricalSeries struct {
	Periods      []string  `json:"years"`
	ROE          []float64 `json:"roe_data"`
	ROA          []float64 `json:"roa_data"`
	PE           []float64 `json:"pe_data"`
	PB           []float64 `json:"pb_data"`
	CurrentRatio []float64 `json:"current_ratio_data"`
	QuickRatio   []float64 `json:"quick_ratio_data"`
	CashRatio    []float64 `json:"cash_ratio_data"`
}

// Len returns the number of periods
func (h *HistoricalSeries) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Periods)
}

type historicalResponse struct {
	Success bool             `json:"success"`
	Error   string           `json:"error"`
	Symbol  string           `json:"symbol"`
	Data    HistoricalSeries `json:"data"`
}

// ValuationRequest is the POST body of the valuation endpoint.
// Every value is a percentage; the engine divides by 100.
type ValuationRequest struct {
	RevenueGrowth   float64                `json:"revenueGrowth"`
	TerminalGrowth  float64                `json:"terminalGrowth"`
	WACC            float64                `json:"wacc"`
	RequiredReturn  float64                `json:"requiredReturn"`
	TaxRate         float64                `json:"taxRate"`
	ProjectionYears int                    `json:"projectionYears"`
	ROE             float64                `json:"roe"`
	PayoutRatio     float64                `json:"payoutRatio"`
	ModelWeights    valuation.ModelWeights `json:"modelWeights"`
}

// NewValuationRequest builds the request body from session state
func NewValuationRequest(a valuation.Assumptions, w valuation.ModelWeights) ValuationRequest {
	return ValuationRequest{
		RevenueGrowth:   a.RevenueGrowth,
		TerminalGrowth:  a.TerminalGrowth,
		WACC:            a.WACC,
		RequiredReturn:  a.RequiredReturn,
		TaxRate:         a.TaxRate,
		ProjectionYears: a.ProjectionYears,
		ROE:             a.ROE,
		PayoutRatio:     a.PayoutRatio,
		ModelWeights:    w,
	}
}

// FinancialData echoes the per-share inputs the engine used
type FinancialData struct {
	EPS               *float64 `json:"eps"`
	BVPS              *float64 `json:"bvps"`
	NetIncome         *float64 `json:"net_income"`
	Equity            *float64 `json:"equity"`
	SharesOutstanding *float64 `json:"shares_outstanding"`
}

// MarketComparison is the engine's own view of price versus value
type MarketComparison struct {
	CurrentPrice      *float64 `json:"current_price"`
	AverageValuation  *float64 `json:"average_valuation"`
	UpsideDownsidePct *float64 `json:"upside_downside_pct"`
	Recommendation    string   `json:"recommendation"`
}

// Summary describes the models the engine could compute
type Summary struct {
	Confidence  string   `json:"confidence,omitempty"`
	Average     *float64 `json:"average,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	ModelsUsed  int      `json:"models_used"`
	TotalModels int      `json:"total_models"`
}

type valuationResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Symbol     string `json:"symbol"`
	Valuations struct {
		FCFE            *float64 `json:"fcfe"`
		FCFF            *float64 `json:"fcff"`
		JustifiedPE     *float64 `json:"justified_pe"`
		JustifiedPB     *float64 `json:"justified_pb"`
		WeightedAverage *float64 `json:"weighted_average"`
	} `json:"valuations"`
	FinancialData    FinancialData     `json:"financial_data"`
	MarketComparison *MarketComparison `json:"market_comparison"`
	Summary          *Summary          `json:"summary"`
}

// ValuationResult is the engine's answer mapped into domain types.
// Models the engine reported as 0 or null are absent in Results.
type ValuationResult struct {
	Symbol  string
	Results valuation.ModelResults
	// EngineWeightedAverage is the engine's own blend, which renormalizes
	// over computed models; kept for display only.
	EngineWeightedAverage *float64
	FinancialData         FinancialData
	MarketComparison      *MarketComparison
	Summary               *Summary
}

// Recommendation returns the engine's recommendation text, "" when absent
func (r *ValuationResult) Recommendation() string {
	if r == nil || r.MarketComparison == nil {
		return ""
	}
	return r.MarketComparison.Recommendation
}

// HealthStatus is the /health payload
type HealthStatus struct {
	Status           string `json:"status"`
	VnstockAvailable bool   `json:"vnstock_available"`
}

// Healthy reports whether the engine says it is healthy
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy" || h.Status == "ok"
}
