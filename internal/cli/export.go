package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"perf-anomaly-alerts/internal/app"
)

var (
	exportTenant    string
	exportDaysBack  int
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export alert history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportTenant == "" {
			return fmt.Errorf("--tenant is required")
		}

		opts := app.ExportOptions{
			Tenant:    exportTenant,
			DaysBack:  exportDaysBack,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportTenant, "tenant", "", "Tenant to export alerts for")
	exportCmd.Flags().IntVar(&exportDaysBack, "days", 30, "How many days back to include")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
