package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/vnvalue/internal/profile"
	"github.com/wonny/vnvalue/internal/session"
	"github.com/wonny/vnvalue/internal/valuation"
)

// ErrNoData is returned when the session holds no company data
var ErrNoData = errors.New("no company data to report")

// Row is one label/value line
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Section groups rows under a heading
type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

// ModelRow is one line of the model table
type ModelRow struct {
	Model       string `json:"model"`
	Weight      string `json:"weight"`
	PerShare    string `json:"per_share"`
	EquityValue string `json:"equity_value"`
}

// Verdict is the blended valuation result
type Verdict struct {
	Target         string `json:"target"`
	CurrentPrice   string `json:"current_price"`
	Upside         string `json:"upside"`
	Action         string `json:"action"`
	Reason         string `json:"reason"`
	Source         string `json:"source"`
	WeightTotal    string `json:"weight_total"`
	EngineAverage  string `json:"engine_average"`
	ModelsComputed string `json:"models_computed"`
}

// Report is the presentation model shared by every renderer
type Report struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	ProfileID   string    `json:"profile_id"`
	ProfileHash string    `json:"profile_hash"`

	Symbol   string    `json:"symbol"`
	Name     string    `json:"name"`
	Period   string    `json:"period"`
	Sections []Section `json:"sections"`

	Models      []ModelRow `json:"models"`
	Verdict     *Verdict   `json:"verdict,omitempty"`
	Assumptions []Row      `json:"assumptions"`
	Notes       []string   `json:"notes,omitempty"`
}

// Build turns a session snapshot into a report
func Build(snap session.Snapshot, prof *profile.Profile, now time.Time) (*Report, error) {
	if snap.Company == nil {
		return nil, ErrNoData
	}
	if prof == nil {
		prof = profile.Default()
	}

	hash, err := profile.Hash(prof)
	if err != nil {
		return nil, fmt.Errorf("hash profile: %w", err)
	}

	c := snap.Company
	name := c.Name
	if name == "" {
		name = snap.Symbol
	}

	r := &Report{
		ID:          uuid.NewString(),
		GeneratedAt: now,
		ProfileID:   prof.Meta.ProfileID,
		ProfileHash: hash,
		Symbol:      snap.Symbol,
		Name:        name,
		Period:      string(snap.Period),
	}

	shares, _ := snap.SharesOutstanding()
	var sharesPtr *float64
	if shares > 0 {
		sharesPtr = &shares
	}

	r.Sections = []Section{
		{Title: "Company", Rows: []Row{
			{"Symbol", snap.Symbol},
			{"Name", orNA(c.Name)},
			{"Sector", orNA(c.Sector)},
			{"Exchange", orNA(c.Exchange)},
			{"Current price", FormatMoneyPtr(c.CurrentPrice)},
			{"Market cap", FormatBillions(c.MarketCap)},
			{"Shares outstanding", FormatCount(sharesPtr)},
		}},
		{Title: "Valuation ratios", Rows: []Row{
			{"P/E", FormatRatio(c.PERatio)},
			{"P/B", FormatRatio(c.PBRatio)},
			{"P/S", FormatRatio(c.PSRatio)},
			{"EV/EBITDA", FormatRatio(c.EVEBITDA)},
			{"EPS", FormatMoneyPtr(c.EPS)},
			{"Book value per share", FormatMoneyPtr(c.BookValuePerShare)},
		}},
		{Title: "Profitability", Rows: []Row{
			{"Revenue (TTM)", FormatBillions(c.RevenueTTM)},
			{"Net income (TTM)", FormatBillions(c.NetIncomeTTM)},
			{"EBITDA", FormatBillions(c.EBITDA)},
			{"ROE", FormatPercent(c.ROE)},
			{"ROA", FormatPercent(c.ROA)},
			{"Gross margin", FormatPercent(c.GrossProfitMargin)},
			{"EBIT margin", FormatPercent(c.EBITMargin)},
			{"Net margin", FormatPercent(c.NetProfitMargin)},
		}},
		{Title: "Financial health", Rows: []Row{
			{"Debt/Equity", FormatRatio(c.DebtToEquity)},
			{"Current ratio", FormatRatio(c.CurrentRatio)},
			{"Quick ratio", FormatRatio(c.QuickRatio)},
			{"Cash ratio", FormatRatio(c.CashRatio)},
			{"Interest coverage", FormatRatio(c.InterestCoverage)},
			{"Total debt", FormatBillions(c.TotalDebt)},
		}},
	}

	for _, m := range valuation.Models {
		w := snap.Weights.Get(m)
		row := ModelRow{
			Model:       m.String(),
			Weight:      FormatPercent(&w),
			PerShare:    NA,
			EquityValue: "-",
		}
		if snap.Results != nil {
			if v, ok := snap.Results.Get(m); ok {
				row.PerShare = FormatMoney(v)
			}
		}
		if m == valuation.FCFE || m == valuation.FCFF {
			row.EquityValue = NA
			if ev, ok := snap.EquityValue(m); ok {
				row.EquityValue = FormatBillions(&ev)
			}
		}
		r.Models = append(r.Models, row)
	}

	if out := snap.Outcome; out != nil {
		total := out.WeightTotal
		v := &Verdict{
			Target:       FormatMoney(out.WeightedValue),
			CurrentPrice: NA,
			Upside:       FormatSignedPercent(out.Upside),
			Action:       NA,
			WeightTotal:  FormatPercent(&total),
		}
		if out.CurrentPrice > 0 {
			v.CurrentPrice = FormatMoney(out.CurrentPrice)
		}
		if rec := out.Recommendation; rec != nil {
			v.Action = string(rec.Action)
			v.Reason = rec.Reason
			v.Source = string(rec.Source)
		}
		v.EngineAverage = FormatMoneyPtr(snap.EngineWeightedAverage)
		if s := snap.EngineSummary; s != nil && s.TotalModels > 0 {
			v.ModelsComputed = fmt.Sprintf("%d of %d", s.ModelsUsed, s.TotalModels)
		}
		r.Verdict = v

		if !out.WeightTotalValid {
			r.Notes = append(r.Notes, fmt.Sprintf("Model weights total %s, not 100%%; the target is not renormalized.", FormatPercent(&total)))
		}
		if len(out.MissingModels) > 0 {
			r.Notes = append(r.Notes, fmt.Sprintf("Models not computed by the engine: %v (policy %s).", out.MissingModels, prof.MissingPolicy))
		}
		if !out.UpsideDefined() {
			r.Notes = append(r.Notes, "Current price unavailable; upside is undefined.")
		}
	}
	if snap.AssumptionsChanged {
		r.Notes = append(r.Notes, "Assumptions changed after the last calculation; model values are out of date.")
	}

	a := snap.Assumptions
	r.Assumptions = []Row{
		{"Revenue growth", FormatPercent(&a.RevenueGrowth)},
		{"Terminal growth", FormatPercent(&a.TerminalGrowth)},
		{"WACC", FormatPercent(&a.WACC)},
		{"Required return", FormatPercent(&a.RequiredReturn)},
		{"Tax rate", FormatPercent(&a.TaxRate)},
		{"Projection years", fmt.Sprintf("%d", a.ProjectionYears)},
		{"ROE", FormatPercent(&a.ROE)},
		{"Payout ratio", FormatPercent(&a.PayoutRatio)},
	}

	return r, nil
}

func orNA(s string) string {
	if s == "" {
		return NA
	}
	return s
}
