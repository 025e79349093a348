package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perf-anomaly-alerts/internal/service"
)

// MetricBatch is one line of the NDJSON ingestion stream: a batch of metric
// values for a tenant and scope, optionally qualified by campaign and
// keyword.
type MetricBatch struct {
	TenantID   string             `json:"tenant_id"`
	ScopeID    string             `json:"scope_id"`
	Metrics    map[string]float64 `json:"metrics"`
	CampaignID *string            `json:"campaign_id,omitempty"`
	KeywordID  *string            `json:"keyword_id,omitempty"`
	Timestamp  *time.Time         `json:"timestamp,omitempty"`
}

// Run starts the long-running monitor, consuming NDJSON metric batches from
// stdin until EOF or interruption.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	stopMetrics := a.serveMetrics()
	defer stopMetrics()

	a.Logger.Info().Msg("starting monitor; reading metric batches from stdin")
	err = a.consumeBatches(ctx, monitor, os.Stdin)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitor stopped")
	return nil
}

func (a *App) consumeBatches(ctx context.Context, monitor *service.Monitor, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var batch MetricBatch
		if err := json.Unmarshal(raw, &batch); err != nil {
			a.Logger.Warn().Err(err).Int("line", line).Msg("skipping malformed batch")
			continue
		}
		if batch.TenantID == "" || len(batch.Metrics) == 0 {
			a.Logger.Warn().Int("line", line).Msg("skipping batch without tenant or metrics")
			continue
		}

		touched := monitor.RecordMetrics(ctx, batch.TenantID, batch.ScopeID, batch.Metrics, service.RecordOptions{
			CampaignID: batch.CampaignID,
			KeywordID:  batch.KeywordID,
			Timestamp:  batch.Timestamp,
		})
		for _, alert := range touched {
			a.Logger.Info().
				Str("alert_id", alert.ID).
				Str("tenant", alert.TenantID).
				Str("type", string(alert.Type)).
				Str("severity", alert.Severity.String()).
				Float64("change_pct", alert.ChangePercent).
				Msg("alert active")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ingestion stream: %w", err)
	}
	return nil
}

// serveMetrics exposes the Prometheus registry when enabled. The returned
// func shuts the listener down.
func (a *App) serveMetrics() func() {
	if !a.Config.Metrics.Enabled {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: a.Config.Metrics.ListenAddr, Handler: mux}

	go func() {
		a.Logger.Info().Str("addr", server.Addr).Msg("serving prometheus metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}
