package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"powerindex/internal/app"
)

var (
	backfillFrom   string
	backfillTo     string
	backfillDryRun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Publish indexes for a range of past delivery dates",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := time.Parse("2006-01-02", backfillFrom)
		if err != nil {
			return fmt.Errorf("parse --from: %w", err)
		}
		to, err := time.Parse("2006-01-02", backfillTo)
		if err != nil {
			return fmt.Errorf("parse --to: %w", err)
		}

		return getApp().Backfill(cmd.Context(), app.BackfillOptions{
			From:   from,
			To:     to,
			DryRun: backfillDryRun,
		})
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "First delivery date as YYYY-MM-DD")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "Last delivery date as YYYY-MM-DD (inclusive)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Compute and log without sending transactions")
	_ = backfillCmd.MarkFlagRequired("from")
	_ = backfillCmd.MarkFlagRequired("to")
}
