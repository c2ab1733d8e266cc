package cli

import (
	"github.com/spf13/cobra"

	"powerindex/internal/app"
)

var (
	showLimit int
	showRuns  bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show recent publications or publish runs from the audit store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{
			Limit: showLimit,
			Runs:  showRuns,
		})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Maximum number of rows to display")
	showCmd.Flags().BoolVar(&showRuns, "runs", false, "Show publish runs instead of per-area publications")
}
