package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vnvalue/internal/external/engine"
	"github.com/wonny/vnvalue/internal/report"
	"github.com/wonny/vnvalue/internal/session"
)

// quoteCmd represents the quote command
var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL",
	Short: "Show company data for a symbol",
	Long: `Fetch the company snapshot and historical series from the engine
and print them without running a valuation.

Example:
  go run ./cmd/vnval quote VCB
  go run ./cmd/vnval quote FPT --period quarter`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

var (
	quotePeriod string
)

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quotePeriod, "period", "year", "financial period (year|quarter)")
}

func runQuote(cmd *cobra.Command, args []string) error {
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	sess, err := loadSession(cmd.Context(), d, args[0], quotePeriod)
	if err != nil {
		return err
	}

	snap := sess.Snapshot()
	rep, err := report.Build(snap, d.profile, time.Now())
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("%s (%s)", rep.Name, rep.Symbol), "Period: "+rep.Period)
	for _, sec := range rep.Sections {
		PrintRows(sec.Title, sec.Rows)
	}

	if h := snap.Historical; h.Len() > 0 {
		fmt.Println()
		fmt.Printf("[History: %d periods]\n", h.Len())
		widths := []int{10, 8, 8, 8, 8}
		PrintTableHeader([]string{"Period", "ROE", "ROA", "P/E", "P/B"}, widths)
		for i, p := range h.Periods {
			PrintTableRow([]string{p, at(h.ROE, i), at(h.ROA, i), at(h.PE, i), at(h.PB, i)}, widths)
		}
	}

	fmt.Println()
	return nil
}

// loadSession runs one load through a fresh session
func loadSession(ctx context.Context, d *deps, symbol, period string) (*session.Session, error) {
	p, err := engine.ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	sess := session.New(d.engine, session.Config{
		LoadTimeout: d.cfg.Engine.LoadTimeout,
		CalcTimeout: d.cfg.Engine.CalcTimeout,
		NoticeTTL:   d.cfg.Session.NoticeTTL,
		Profile:     d.profile,
	}, d.log)

	if ctx == nil {
		ctx = context.Background()
	}
	if err := sess.Load(ctx, symbol, p); err != nil {
		PrintError(fmt.Sprintf("Failed to load %s", symbol))
		return nil, err
	}
	return sess, nil
}

func at(values []float64, i int) string {
	if i >= len(values) {
		return report.NA
	}
	return report.FormatNumber(values[i], 2)
}
