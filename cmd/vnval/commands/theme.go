package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/vnvalue/internal/prefs"
	"github.com/wonny/vnvalue/pkg/redis"
)

// themeCmd represents the theme command
var themeCmd = &cobra.Command{
	Use:   "theme [light|dark|toggle]",
	Short: "Show or change the saved UI theme",
	Long: `Read or write the theme preference shared with the web front end.
Without Redis the value only lasts for this process.

Example:
  go run ./cmd/vnval theme
  go run ./cmd/vnval theme dark
  go run ./cmd/vnval theme toggle`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"light", "dark", "toggle"},
	RunE:      runTheme,
}

func init() {
	rootCmd.AddCommand(themeCmd)
}

func runTheme(cmd *cobra.Command, args []string) error {
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	if !d.redis.Enabled() {
		PrintWarning("Redis is disabled; the theme will not be persisted")
	}

	store := prefs.New(redis.NewStore(d.redis, redisPrefix), d.log)
	ctx := context.Background()

	var theme prefs.Theme
	switch {
	case len(args) == 0:
		theme = store.Theme(ctx)
	case args[0] == "toggle":
		if theme, err = store.ToggleTheme(ctx); err != nil {
			return err
		}
	default:
		if theme, err = prefs.ParseTheme(args[0]); err != nil {
			return err
		}
		if err := store.SetTheme(ctx, theme); err != nil {
			return err
		}
	}

	PrintInfo(fmt.Sprintf("Theme: %s", theme))
	return nil
}
