package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"perf-anomaly-alerts/internal/app"
)

var (
	historyTenant   string
	historyScope    string
	historyDaysBack int
	historyLimit    int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Display alert history, resolved alerts included",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyTenant == "" {
			return fmt.Errorf("--tenant is required")
		}

		opts := app.HistoryOptions{
			Tenant:   historyTenant,
			Scope:    historyScope,
			DaysBack: historyDaysBack,
			Limit:    historyLimit,
		}

		return getApp().History(cmd.Context(), opts)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyTenant, "tenant", "", "Tenant to list alerts for")
	historyCmd.Flags().StringVar(&historyScope, "scope", "", "Restrict to one monitored scope")
	historyCmd.Flags().IntVar(&historyDaysBack, "days", 30, "How many days back to include")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 200, "Maximum number of alerts to display")
}
