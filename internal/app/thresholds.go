package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"perf-anomaly-alerts/internal/anomaly"
	"perf-anomaly-alerts/internal/threshold"
)

// ThresholdSetOptions carry one override from the CLI.
type ThresholdSetOptions struct {
	Tenant      string
	Scope       string
	AnomalyType string
	Low         float64
	Medium      float64
	High        float64
	Critical    float64
	Direction   string
	Lookback    time.Duration
	AutoAction  string
}

// ListThresholds prints the effective config per anomaly type.
func (a *App) ListThresholds(ctx context.Context, tenant, scope string) error {
	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	merged := monitor.Thresholds(tenant, scope)

	types := make([]string, 0, len(merged))
	for t := range merged {
		types = append(types, string(t))
	}
	sort.Strings(types)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Type\tMetric\tLow\tMedium\tHigh\tCritical\tDirection\tLookback\tAction\tCustom")
	for _, t := range types {
		cfg := merged[anomaly.Type(t)]
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%v\n",
			t,
			cfg.Metric,
			formatFloat(cfg.Low, 2),
			formatFloat(cfg.Medium, 2),
			formatFloat(cfg.High, 2),
			formatFloat(cfg.Critical, 2),
			cfg.Direction,
			cfg.Lookback,
			cfg.AutoAction,
			cfg.IsCustom,
		)
	}
	return writer.Flush()
}

// SetThreshold installs a custom override for one anomaly type.
func (a *App) SetThreshold(ctx context.Context, opts ThresholdSetOptions) error {
	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	t := anomaly.Type(opts.AnomalyType)
	def, ok := threshold.Default(t)
	if !ok {
		return fmt.Errorf("unknown anomaly type %q", opts.AnomalyType)
	}

	cfg := threshold.Config{
		Metric:     def.Metric,
		Low:        opts.Low,
		Medium:     opts.Medium,
		High:       opts.High,
		Critical:   opts.Critical,
		Direction:  def.Direction,
		Lookback:   def.Lookback,
		AutoAction: def.AutoAction,
	}
	if opts.Direction != "" {
		cfg.Direction = anomaly.Direction(opts.Direction)
	}
	if opts.Lookback > 0 {
		cfg.Lookback = opts.Lookback
	}
	if opts.AutoAction != "" {
		cfg.AutoAction = anomaly.AutoAction(opts.AutoAction)
	}

	id, err := monitor.SetThreshold(ctx, opts.Tenant, opts.Scope, t, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "threshold %s set (id %s)\n", t, id)
	return nil
}

// ResetThreshold disables the custom override, reverting to the default.
func (a *App) ResetThreshold(ctx context.Context, tenant, scope, anomalyType string) error {
	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	t := anomaly.Type(anomalyType)
	if _, ok := threshold.Default(t); !ok {
		return fmt.Errorf("unknown anomaly type %q", anomalyType)
	}

	if err := monitor.ResetThreshold(ctx, tenant, scope, t); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "threshold %s reset to default\n", t)
	return nil
}
