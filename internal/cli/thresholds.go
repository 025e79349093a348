package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"perf-anomaly-alerts/internal/app"
)

var (
	thresholdTenant     string
	thresholdScope      string
	thresholdLow        float64
	thresholdMedium     float64
	thresholdHigh       float64
	thresholdCritical   float64
	thresholdDirection  string
	thresholdLookback   time.Duration
	thresholdAutoAction string
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Inspect and manage severity thresholds",
}

var thresholdsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the effective thresholds per anomaly type",
	RunE: func(cmd *cobra.Command, args []string) error {
		if thresholdTenant == "" {
			return fmt.Errorf("--tenant is required")
		}
		return getApp().ListThresholds(cmd.Context(), thresholdTenant, thresholdScope)
	},
}

var thresholdsSetCmd = &cobra.Command{
	Use:   "set <anomaly-type>",
	Short: "Install a custom threshold override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if thresholdTenant == "" {
			return fmt.Errorf("--tenant is required")
		}

		opts := app.ThresholdSetOptions{
			Tenant:      thresholdTenant,
			Scope:       thresholdScope,
			AnomalyType: args[0],
			Low:         thresholdLow,
			Medium:      thresholdMedium,
			High:        thresholdHigh,
			Critical:    thresholdCritical,
			Direction:   thresholdDirection,
			Lookback:    thresholdLookback,
			AutoAction:  thresholdAutoAction,
		}
		return getApp().SetThreshold(cmd.Context(), opts)
	},
}

var thresholdsResetCmd = &cobra.Command{
	Use:   "reset <anomaly-type>",
	Short: "Disable the custom override, reverting to the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if thresholdTenant == "" {
			return fmt.Errorf("--tenant is required")
		}
		return getApp().ResetThreshold(cmd.Context(), thresholdTenant, thresholdScope, args[0])
	},
}

func init() {
	thresholdsCmd.PersistentFlags().StringVar(&thresholdTenant, "tenant", "", "Tenant owning the override")
	thresholdsCmd.PersistentFlags().StringVar(&thresholdScope, "scope", "", "Scope the override applies to (empty for tenant-wide)")

	thresholdsSetCmd.Flags().Float64Var(&thresholdLow, "low", 0, "Low-tier fractional change cutoff")
	thresholdsSetCmd.Flags().Float64Var(&thresholdMedium, "medium", 0, "Medium-tier fractional change cutoff")
	thresholdsSetCmd.Flags().Float64Var(&thresholdHigh, "high", 0, "High-tier fractional change cutoff")
	thresholdsSetCmd.Flags().Float64Var(&thresholdCritical, "critical", 0, "Critical-tier fractional change cutoff")
	thresholdsSetCmd.Flags().StringVar(&thresholdDirection, "direction", "", "Deviation direction (up|down|both), defaults to the type's direction")
	thresholdsSetCmd.Flags().DurationVar(&thresholdLookback, "lookback", 0, "Baseline lookback window, defaults to the type's lookback")
	thresholdsSetCmd.Flags().StringVar(&thresholdAutoAction, "auto-action", "", "Suggested remediation action")

	thresholdsCmd.AddCommand(thresholdsListCmd)
	thresholdsCmd.AddCommand(thresholdsSetCmd)
	thresholdsCmd.AddCommand(thresholdsResetCmd)
}
