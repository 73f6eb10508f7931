package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vnvalue/internal/report"
	"github.com/wonny/vnvalue/internal/valuation"
)

// valuateCmd represents the valuate command
var valuateCmd = &cobra.Command{
	Use:   "valuate SYMBOL",
	Short: "Run the four-model valuation for a symbol",
	Long: `Load a symbol, run the engine valuation and print the weighted
target price, upside and recommendation.

Weights are percentages and are not renormalized: a total other than
100 scales the target and is flagged. Models left out of --weights keep
their profile weight.

Example:
  go run ./cmd/vnval valuate VCB
  go run ./cmd/vnval valuate VCB --weights fcfe=40,fcff=20,justified_pe=20,justified_pb=20
  go run ./cmd/vnval valuate VCB --set wacc=11.5,terminal_growth=2.5
  go run ./cmd/vnval valuate VCB --report html --out vcb.html --charts ./charts`,
	Args: cobra.ExactArgs(1),
	RunE: runValuate,
}

var (
	valuatePeriod  string
	valuateWeights map[string]string
	valuateSet     map[string]string
	valuateReport  string
	valuateOut     string
	valuateCharts  string
)

func init() {
	rootCmd.AddCommand(valuateCmd)

	valuateCmd.Flags().StringVar(&valuatePeriod, "period", "year", "financial period (year|quarter)")
	valuateCmd.Flags().StringToStringVar(&valuateWeights, "weights", nil, "model weights in percent (fcfe, fcff, justified_pe, justified_pb)")
	valuateCmd.Flags().StringToStringVar(&valuateSet, "set", nil, "assumption overrides, e.g. wacc=11,revenue_growth=6")
	valuateCmd.Flags().StringVar(&valuateReport, "report", "", "print a full report (text|markdown|html|json)")
	valuateCmd.Flags().StringVar(&valuateOut, "out", "", "write the report to a file instead of stdout")
	valuateCmd.Flags().StringVar(&valuateCharts, "charts", "", "directory to write historical PNG charts into")
}

func runValuate(cmd *cobra.Command, args []string) error {
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	sess, err := loadSession(cmd.Context(), d, args[0], valuatePeriod)
	if err != nil {
		return err
	}

	if len(valuateSet) > 0 {
		a, err := applyAssumptions(sess.Snapshot().Assumptions, valuateSet)
		if err != nil {
			return err
		}
		if err := sess.SetAssumptions(a); err != nil {
			return err
		}
	}

	weights, err := parseWeights(sess.Snapshot().Weights, valuateWeights)
	if err != nil {
		return err
	}
	if weights != nil {
		if err := sess.SetWeights(*weights); err != nil {
			return err
		}
	}

	if err := sess.Calculate(cmd.Context()); err != nil {
		PrintError("Valuation failed")
		return err
	}

	snap := sess.Snapshot()
	rep, err := report.Build(snap, d.profile, time.Now())
	if err != nil {
		return err
	}

	if valuateCharts != "" {
		if err := writeCharts(snap.Historical, rep.Symbol, valuateCharts); err != nil {
			return err
		}
	}

	if valuateReport != "" {
		return writeReport(rep, valuateReport, valuateOut)
	}

	printSummary(rep)
	return nil
}

func printSummary(rep *report.Report) {
	PrintHeader(fmt.Sprintf("%s (%s)", rep.Name, rep.Symbol), "Period: "+rep.Period+"  Profile: "+rep.ProfileID)

	fmt.Println()
	widths := []int{15, 8, 18, 24}
	PrintTableHeader([]string{"Model", "Weight", "Per share", "Equity value"}, widths)
	for _, m := range rep.Models {
		PrintTableRow([]string{m.Model, m.Weight, m.PerShare, m.EquityValue}, widths)
	}

	v := rep.Verdict
	if v == nil {
		PrintWarning("No valuation result")
		return
	}

	PrintRows("Result", []report.Row{
		{Label: "Weighted target", Value: v.Target},
		{Label: "Current price", Value: v.CurrentPrice},
		{Label: "Upside", Value: v.Upside},
		{Label: "Weight total", Value: v.WeightTotal},
	})

	fmt.Println()
	switch valuation.Action(v.Action) {
	case valuation.Buy:
		PrintSuccess(fmt.Sprintf("%s: %s (%s)", v.Action, v.Reason, v.Source))
	case valuation.Sell:
		PrintError(fmt.Sprintf("%s: %s (%s)", v.Action, v.Reason, v.Source))
	case valuation.Hold:
		PrintInfo(fmt.Sprintf("%s: %s (%s)", v.Action, v.Reason, v.Source))
	default:
		PrintInfo("No recommendation: " + v.Reason)
	}

	for _, n := range rep.Notes {
		PrintWarning(n)
	}
}

// parseWeights applies the overrides on top of base, usually the session weights
func parseWeights(base valuation.ModelWeights, raw map[string]string) (*valuation.ModelWeights, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	w := base
	for key, val := range raw {
		m, err := valuation.ParseModel(key)
		if err != nil {
			return nil, err
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(val, "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %s: %w", key, err)
		}
		if err := w.Set(m, pct); err != nil {
			return nil, err
		}
	}
	return &w, nil
}

// applyAssumptions overlays key=value pairs onto a by their JSON names
func applyAssumptions(a valuation.Assumptions, raw map[string]string) (valuation.Assumptions, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return a, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return a, err
	}

	for key, val := range raw {
		if _, ok := fields[key]; !ok {
			return a, fmt.Errorf("unknown assumption %q (known: %s)", key, strings.Join(sortedKeys(fields), ", "))
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return a, fmt.Errorf("assumption %s: %w", key, err)
		}
		fields[key] = f
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return a, err
	}
	var out valuation.Assumptions
	if err := json.Unmarshal(merged, &out); err != nil {
		return a, fmt.Errorf("invalid assumptions: %w", err)
	}
	return out, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeReport(rep *report.Report, format, out string) error {
	var data []byte
	switch format {
	case "text":
		data = []byte(report.RenderText(rep))
	case "markdown", "md":
		data = []byte(report.RenderMarkdown(rep))
	case "html":
		page, err := report.RenderHTML(rep)
		if err != nil {
			return err
		}
		data = page
	case "json":
		b, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		data = append(b, '\n')
	default:
		return fmt.Errorf("unknown report format %q (text|markdown|html|json)", format)
	}

	if out == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	PrintSuccess("Report written to " + out)
	return nil
}
