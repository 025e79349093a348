package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"perf-anomaly-alerts/internal/alerts"
)

// Show prints a tenant's active alerts, most urgent first.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	active, err := monitor.ActiveAlerts(opts.Tenant, opts.Scope, opts.Severity, opts.Limit)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		fmt.Fprintln(os.Stdout, "no active alerts")
		return nil
	}

	printAlertTable(active)
	return nil
}

// History prints a tenant's alert history, resolved alerts included.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := monitor.AlertHistory(ctx, opts.Tenant, opts.Scope, opts.DaysBack, opts.Limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts in window")
		return nil
	}

	printAlertTable(rows)
	return nil
}

// Summary prints the aggregate view of a tenant's active alerts.
func (a *App) Summary(ctx context.Context, tenant string) error {
	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	summary := monitor.Summary(tenant)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Active alerts\t%d\n", summary.TotalActive)
	fmt.Fprintf(writer, "Needs attention\t%v\n", summary.NeedsAttention)
	fmt.Fprintf(writer, "By severity\t%s\n", formatCounts(summary.BySeverity))
	fmt.Fprintf(writer, "By scope\t%s\n", formatCounts(summary.ByScope))
	fmt.Fprintf(writer, "By type\t%s\n", formatCounts(summary.ByType))
	return writer.Flush()
}

func printAlertTable(rows []alerts.Alert) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tScope\tType\tSeverity\tCurrent\tBaseline\tChange%\tZ\tDetected (UTC)\tAck\tResolved")

	for _, alert := range rows {
		resolved := ""
		if alert.ResolvedAt != nil {
			resolved = alert.ResolvedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%v\t%s\n",
			alert.ID,
			alert.ScopeID,
			alert.Type,
			alert.Severity,
			formatFloat(alert.CurrentValue, 2),
			formatFloat(alert.BaselineValue, 2),
			formatFloat(alert.ChangePercent, 1),
			formatFloat(alert.ZScore, 2),
			alert.DetectedAt.UTC().Format(time.RFC3339),
			alert.Acknowledged,
			resolved,
		)
	}
	writer.Flush()
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func formatFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
