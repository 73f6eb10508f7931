package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vnvalue/internal/external/engine"
	"github.com/wonny/vnvalue/internal/profile"
	"github.com/wonny/vnvalue/internal/session"
	"github.com/wonny/vnvalue/internal/valuation"
)

func fp(v float64) *float64 { return &v }

func valuedSnapshot(t *testing.T) session.Snapshot {
	t.Helper()

	results := valuation.ModelResults{}.
		With(valuation.FCFE, 100000).
		With(valuation.FCFF, 110000).
		With(valuation.JustifiedPE, 90000).
		With(valuation.JustifiedPB, 95000)

	out, err := valuation.Evaluate(results, valuation.EqualWeights(), 80000, "", valuation.DefaultOptions())
	require.NoError(t, err)

	return session.Snapshot{
		State:  session.StateValued,
		Symbol: "VNM",
		Period: engine.PeriodYear,
		Company: &engine.CompanySnapshot{
			Symbol:            "VNM",
			Name:              "Vinamilk | Dairy",
			Exchange:          "HOSE",
			CurrentPrice:      fp(80000),
			MarketCap:         fp(1.672e14),
			PERatio:           fp(15.234),
			ROE:               fp(28.5),
			SharesOutstanding: fp(2_000_000_000),
		},
		Assumptions: valuation.DefaultAssumptions(),
		Weights:     valuation.EqualWeights(),
		Results:     &results,
		Outcome:     &out,
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "98,750 VND", FormatMoney(98750))
	assert.Equal(t, "64,501 VND", FormatMoney(64500.5))
	assert.Equal(t, "-1,234,567 VND", FormatMoney(-1234567))
	assert.Equal(t, "999 VND", FormatMoney(999))
	assert.Equal(t, "167,200.00 bn VND", FormatBillions(fp(1.672e14)))
	assert.Equal(t, "15.23", FormatRatio(fp(15.234)))
	assert.Equal(t, "28.50%", FormatPercent(fp(28.5)))
	assert.Equal(t, "+23.44%", FormatSignedPercent(fp(23.4375)))
	assert.Equal(t, "-1.25%", FormatSignedPercent(fp(-1.25)))
	assert.Equal(t, "0.00%", FormatSignedPercent(fp(0)))
	assert.Equal(t, NA, FormatRatio(nil))
	assert.Equal(t, NA, FormatMoneyPtr(nil))
}

func TestBuild(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	r, err := Build(valuedSnapshot(t), profile.Default(), now)
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Len(t, r.ProfileHash, 64)
	assert.Equal(t, "default", r.ProfileID)

	require.NotNil(t, r.Verdict)
	assert.Equal(t, "98,750 VND", r.Verdict.Target)
	assert.Equal(t, "80,000 VND", r.Verdict.CurrentPrice)
	assert.Equal(t, "+23.44%", r.Verdict.Upside)
	assert.Equal(t, "BUY", r.Verdict.Action)
	assert.Equal(t, "local", r.Verdict.Source)

	require.Len(t, r.Models, 4)
	assert.Equal(t, ModelRow{"FCFE", "25.00%", "100,000 VND", "200,000.00 bn VND"}, r.Models[0])
	assert.Equal(t, "-", r.Models[2].EquityValue)
	assert.Empty(t, r.Notes)
}

func TestBuild_NotesAndMissing(t *testing.T) {
	snap := valuedSnapshot(t)
	results := snap.Results.Clone()
	results.FCFE = nil
	w := valuation.ModelWeights{FCFE: 50, FCFF: 50, JustifiedPE: 20}
	out, err := valuation.Evaluate(results, w, 0, "", valuation.DefaultOptions())
	require.NoError(t, err)

	snap.Results = &results
	snap.Weights = w
	snap.Outcome = &out
	snap.AssumptionsChanged = true
	snap.Company.PERatio = nil

	r, err := Build(snap, nil, time.Now())
	require.NoError(t, err)

	assert.Equal(t, NA, r.Models[0].PerShare)
	assert.Equal(t, NA, r.Models[0].EquityValue)
	assert.Equal(t, NA, r.Verdict.Upside)
	assert.Equal(t, NA, r.Verdict.Action)
	assert.Len(t, r.Notes, 4)
}

func TestBuild_NoCompany(t *testing.T) {
	_, err := Build(session.Snapshot{}, nil, time.Now())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestBuild_NotCalculated(t *testing.T) {
	snap := valuedSnapshot(t)
	snap.Results = nil
	snap.Outcome = nil

	r, err := Build(snap, nil, time.Now())
	require.NoError(t, err)
	assert.Nil(t, r.Verdict)
	assert.Contains(t, RenderText(r), "Not calculated")
}

func TestRenderText(t *testing.T) {
	r, err := Build(valuedSnapshot(t), nil, time.Now())
	require.NoError(t, err)

	text := RenderText(r)
	assert.Contains(t, text, "VALUATION REPORT: Vinamilk | Dairy (VNM)")
	assert.Contains(t, text, "98,750 VND")
	assert.Contains(t, text, "significant undervaluation")
	assert.Contains(t, text, "Justified P/B")
	assert.Contains(t, text, "WACC:")
}

func TestRenderHTML(t *testing.T) {
	r, err := Build(valuedSnapshot(t), nil, time.Now())
	require.NoError(t, err)

	page, err := RenderHTML(r)
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, "Valuation report: VNM", doc.Find("title").Text())
	assert.Contains(t, doc.Find("h1").Text(), "Vinamilk | Dairy")

	// result, models, four metric sections, assumptions
	assert.Equal(t, 7, doc.Find("table").Length())

	var models []string
	doc.Find("table").Eq(1).Find("tbody tr").Each(func(i int, s *goquery.Selection) {
		models = append(models, strings.TrimSpace(s.Find("td").First().Text()))
	})
	assert.Equal(t, []string{"FCFE", "FCFF", "Justified P/E", "Justified P/B"}, models)

	target := doc.Find("table").First().Find("tbody tr").First().Find("td").Last().Text()
	assert.Equal(t, "98,750 VND", target)
}

func TestRenderChart(t *testing.T) {
	h := &engine.HistoricalSeries{
		Periods:      []string{"2023 Q3", "2023 Q4", "2024 Q1"},
		ROE:          []float64{20.1, 21.4, 22.0},
		ROA:          []float64{10.2, 10.8, 11.1},
		CurrentRatio: []float64{1.2, 1.3, 1.4},
	}

	png, err := RenderChart(h, ChartProfitability)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = RenderChart(h, ChartLiquidity)
	assert.NoError(t, err, "partial series still render")

	_, err = RenderChart(h, ChartValuation)
	assert.ErrorIs(t, err, ErrNoSeries)

	_, err = RenderChart(&engine.HistoricalSeries{Periods: []string{"2024 Q1"}, ROE: []float64{1}}, ChartProfitability)
	assert.ErrorIs(t, err, ErrTooFewPeriods)

	_, err = RenderChart(h, ChartKind("momentum"))
	assert.ErrorIs(t, err, ErrUnknownChart)
}
