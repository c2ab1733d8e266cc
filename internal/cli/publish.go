package cli

import (
	"github.com/spf13/cobra"

	"powerindex/internal/app"
)

var (
	publishDate   string
	publishDryRun bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the index for a single delivery date and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Publish(cmd.Context(), app.PublishOptions{
			Date:   publishDate,
			DryRun: publishDryRun,
		})
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishDate, "date", "", "Delivery date as YYYY-MM-DD (default: tomorrow UTC)")
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "Compute and log without sending transactions")
}
