package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"powerindex/internal/app"
)

var (
	exportFrom      string
	exportTo        string
	exportPNG       string
	exportCSV       string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export published index values to CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:   exportPNG,
			CSVPath:   exportCSV,
			MaxPoints: exportMaxPoints,
		}

		if exportFrom != "" {
			from, err := time.Parse("2006-01-02", exportFrom)
			if err != nil {
				return fmt.Errorf("parse --from: %w", err)
			}
			opts.From = &from
		}
		if exportTo != "" {
			to, err := time.Parse("2006-01-02", exportTo)
			if err != nil {
				return fmt.Errorf("parse --to: %w", err)
			}
			opts.To = &to
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First delivery date as YYYY-MM-DD (default: max-points days back)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last delivery date as YYYY-MM-DD (default: today)")
	exportCmd.Flags().StringVar(&exportPNG, "png", "", "Write a PNG chart to this path")
	exportCmd.Flags().StringVar(&exportCSV, "csv", "", "Write a CSV file to this path")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Downsample to at most this many points per area (0 = config default)")
}
