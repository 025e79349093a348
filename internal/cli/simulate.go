package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"perf-anomaly-alerts/internal/app"
)

var (
	simulateTenant      string
	simulateScope       string
	simulateInterval    time.Duration
	simulateTicks       int
	simulateSpikeAfter  int
	simulateSpikeFactor float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive synthetic metric batches through the detection pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateTenant == "" {
			return errors.New("--tenant is required")
		}
		if simulateSpikeAfter >= simulateTicks {
			return errors.New("--spike-after must be less than --ticks")
		}

		opts := app.SimulateOptions{
			Tenant:      simulateTenant,
			Scope:       simulateScope,
			Interval:    simulateInterval,
			Ticks:       simulateTicks,
			SpikeAfter:  simulateSpikeAfter,
			SpikeFactor: simulateSpikeFactor,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateTenant, "tenant", "", "Tenant to simulate traffic for")
	simulateCmd.Flags().StringVar(&simulateScope, "scope", "sim-scope", "Scope to simulate traffic for")
	simulateCmd.Flags().DurationVar(&simulateInterval, "interval", 2*time.Second, "Tick interval (defaults to ingest.interval when zero)")
	simulateCmd.Flags().IntVar(&simulateTicks, "ticks", 10, "Number of batches to generate")
	simulateCmd.Flags().IntVar(&simulateSpikeAfter, "spike-after", 5, "Tick after which the deviation is injected")
	simulateCmd.Flags().Float64Var(&simulateSpikeFactor, "spike-factor", 1.8, "Multiplier applied to each metric in its alerting direction")
}
