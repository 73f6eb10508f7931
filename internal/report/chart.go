package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/wonny/vnvalue/internal/external/engine"
)

// ChartKind selects which historical series are plotted together
type ChartKind string

const (
	ChartProfitability ChartKind = "profitability"
	ChartValuation     ChartKind = "valuation"
	ChartLiquidity     ChartKind = "liquidity"
)

// ChartKinds lists every chart in display order
var ChartKinds = []ChartKind{ChartProfitability, ChartValuation, ChartLiquidity}

var (
	ErrUnknownChart  = errors.New("unknown chart kind")
	ErrTooFewPeriods = errors.New("need at least 2 periods")
	ErrNoSeries      = errors.New("no series available for chart")
)

// ParseChartKind accepts profitability, valuation or liquidity
func ParseChartKind(s string) (ChartKind, error) {
	k := ChartKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ChartKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChart, s)
}

type line struct {
	name   string
	color  string
	values []float64
}

func (k ChartKind) lines(h *engine.HistoricalSeries) (title, unit string, lines []line) {
	switch k {
	case ChartProfitability:
		return "Profitability", "%", []line{
			{"ROE", "2563eb", h.ROE},
			{"ROA", "16a34a", h.ROA},
		}
	case ChartValuation:
		return "Valuation multiples", "x", []line{
			{"P/E", "9333ea", h.PE},
			{"P/B", "ea580c", h.PB},
		}
	default:
		return "Liquidity", "x", []line{
			{"Current ratio", "2563eb", h.CurrentRatio},
			{"Quick ratio", "16a34a", h.QuickRatio},
			{"Cash ratio", "9ca3af", h.CashRatio},
		}
	}
}

// RenderChart renders one historical chart as PNG bytes.
// Series whose length does not match the period labels are skipped.
func RenderChart(h *engine.HistoricalSeries, kind ChartKind) ([]byte, error) {
	if _, err := ParseChartKind(string(kind)); err != nil {
		return nil, err
	}
	n := h.Len()
	if n < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrTooFewPeriods, n)
	}

	xValues := make([]float64, n)
	ticks := make([]chart.Tick, n)
	for i, label := range h.Periods {
		xValues[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: label}
	}

	title, unit, lines := kind.lines(h)

	var series []chart.Series
	for _, l := range lines {
		if len(l.values) != n {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name: l.name,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex(l.color),
				StrokeWidth: 2,
				DotColor:    drawing.ColorFromHex(l.color),
				DotWidth:    3,
			},
			XValues: xValues,
			YValues: l.values,
		})
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSeries, kind)
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1f%s", f, unit)
				}
				return ""
			},
		},
		Series: series,
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
