package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"perf-anomaly-alerts/internal/app"
)

var (
	alertsTenant   string
	alertsScope    string
	alertsSeverity string
	alertsLimit    int
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Display active alerts for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsTenant == "" {
			return fmt.Errorf("--tenant is required")
		}
		if alertsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Tenant:   alertsTenant,
			Scope:    alertsScope,
			Severity: alertsSeverity,
			Limit:    alertsLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	alertsCmd.Flags().StringVar(&alertsTenant, "tenant", "", "Tenant to list alerts for")
	alertsCmd.Flags().StringVar(&alertsScope, "scope", "", "Restrict to one monitored scope")
	alertsCmd.Flags().StringVar(&alertsSeverity, "severity", "", "Restrict to one severity tier (low|medium|high|critical)")
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 50, "Maximum number of alerts to display")
}
