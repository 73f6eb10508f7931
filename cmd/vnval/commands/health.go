package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the valuation engine",
	Long: `Call the engine /health endpoint once and report its status.

Example:
  go run ./cmd/vnval health
  go run ./cmd/vnval health --engine https://engine.example.com`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	status, err := d.engine.Health(ctx)
	elapsed := time.Since(start)

	PrintHeader("Engine health", d.engine.BaseURL())
	if err != nil {
		PrintError(fmt.Sprintf("Unreachable after %s: %v", elapsed.Round(time.Millisecond), err))
		return err
	}

	if !status.Healthy() {
		PrintError(fmt.Sprintf("Status %q", status.Status))
		return fmt.Errorf("engine unhealthy: %s", status.Status)
	}

	PrintSuccess(fmt.Sprintf("Status %q in %s", status.Status, elapsed.Round(time.Millisecond)))
	if !status.VnstockAvailable {
		PrintWarning("Market data provider is not available on the engine")
	}
	return nil
}
