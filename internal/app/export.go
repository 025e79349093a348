package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"perf-anomaly-alerts/internal/alerts"
)

// Export renders a tenant's alert history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Tenant == "" {
		return errors.New("--tenant is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := monitor.AlertHistory(ctx, opts.Tenant, "", opts.DaysBack, opts.MaxPoints)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.Logger.Info().Msg("no alerts found for export window")
		return nil
	}

	// History is newest-first; charts read oldest-first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	downsampled := downsampleAlerts(rows, opts.MaxPoints)
	a.Logger.Info().Int("total", len(rows)).Int("exported", len(downsampled)).Msg("exporting alerts")

	if opts.CSVPath != "" {
		if err := writeAlertsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAlertsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleAlerts(rows []alerts.Alert, max int) []alerts.Alert {
	if max <= 0 || len(rows) <= max {
		return rows
	}

	result := make([]alerts.Alert, 0, max)
	step := float64(len(rows)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		result = append(result, rows[idx])
	}
	return result
}

func writeAlertsCSV(path string, rows []alerts.Alert) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"detected_at", "tenant_id", "scope_id", "anomaly_type", "severity", "metric_name", "current_value", "baseline_value", "change_percent", "z_score", "acknowledged", "resolved_at", "notes"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, alert := range rows {
		resolved := ""
		if alert.ResolvedAt != nil {
			resolved = alert.ResolvedAt.UTC().Format(time.RFC3339)
		}
		notes := ""
		if alert.Notes != nil {
			notes = *alert.Notes
		}
		record := []string{
			alert.DetectedAt.UTC().Format(time.RFC3339),
			alert.TenantID,
			alert.ScopeID,
			string(alert.Type),
			alert.Severity.String(),
			alert.Metric,
			formatFloat(alert.CurrentValue, 4),
			formatFloat(alert.BaselineValue, 4),
			formatFloat(alert.ChangePercent, 2),
			formatFloat(alert.ZScore, 3),
			boolString(alert.Acknowledged),
			resolved,
			notes,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeAlertsPNG(path string, rows []alerts.Alert) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(rows))
	change := make([]float64, len(rows))
	zScore := make([]float64, len(rows))

	for i, alert := range rows {
		x[i] = alert.DetectedAt
		change[i] = alert.ChangePercent
		zScore[i] = alert.ZScore
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Change (%)",
			ValueFormatter: valueFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Z-score",
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Change %",
				XValues: x,
				YValues: change,
			},
			chart.TimeSeries{
				Name:    "Z-score",
				XValues: x,
				YValues: zScore,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
