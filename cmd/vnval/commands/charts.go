package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/vnvalue/internal/external/engine"
	"github.com/wonny/vnvalue/internal/report"
)

// writeCharts renders every chart kind into dir; kinds without data are skipped
func writeCharts(h *engine.HistoricalSeries, symbol, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}

	for _, kind := range report.ChartKinds {
		png, err := report.RenderChart(h, kind)
		if errors.Is(err, report.ErrNoSeries) || errors.Is(err, report.ErrTooFewPeriods) {
			PrintWarning(fmt.Sprintf("Skipping %s chart: %v", kind, err))
			continue
		}
		if err != nil {
			return err
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", symbol, kind))
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		PrintSuccess("Chart written to " + path)
	}
	return nil
}
