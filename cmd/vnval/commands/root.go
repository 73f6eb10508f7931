package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	profilePath string
	engineURL   string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vnval",
	Short: "vnvalue - Vietnamese stock valuation workbench",
	Long: `vnvalue CLI

Blends FCFE, FCFF, Justified P/E and Justified P/B values from the
valuation engine into one target price, upside and BUY/HOLD/SELL call.

Usage:
  go run ./cmd/vnval [command]

Examples:
  go run ./cmd/vnval serve
  go run ./cmd/vnval quote VCB
  go run ./cmd/vnval valuate VCB --weights fcfe=40,fcff=20,justified_pe=20,justified_pb=20
  go run ./cmd/vnval health`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "valuation profile YAML (default: built-in profile or VALUATION_PROFILE)")
	rootCmd.PersistentFlags().StringVar(&engineURL, "engine", "", "valuation engine base URL (overrides ENGINE_BASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
