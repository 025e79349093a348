package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"perf-anomaly-alerts/internal/alerts"
	"perf-anomaly-alerts/internal/anomaly"
	"perf-anomaly-alerts/internal/config"
	"perf-anomaly-alerts/internal/detector"
	"perf-anomaly-alerts/internal/history"
	"perf-anomaly-alerts/internal/metrics"
	"perf-anomaly-alerts/internal/storage"
	"perf-anomaly-alerts/internal/threshold"
)

// Monitor is the explicitly constructed anomaly-monitoring service: bounded
// history, detection, alert lifecycle, and async persistence dispatch behind
// one object handed to every caller.
type Monitor struct {
	history        *history.Store
	registry       *threshold.Registry
	detector       *detector.Detector
	manager        *alerts.Manager
	alertStore     storage.AlertStore
	thresholdStore storage.ThresholdStore
	writer         *storage.AsyncWriter
	logger         zerolog.Logger
}

// Options carries the optional persistence collaborators. Any of them may be
// nil; the monitor then runs purely in memory.
type Options struct {
	AlertStore     storage.AlertStore
	ThresholdStore storage.ThresholdStore
	Writer         *storage.AsyncWriter
}

// New constructs the monitor.
func New(cfg *config.Config, opts Options, logger zerolog.Logger) *Monitor {
	m := &Monitor{
		history:        history.NewStore(cfg.Detector.HistoryCapacity),
		registry:       threshold.NewRegistry(),
		alertStore:     opts.AlertStore,
		thresholdStore: opts.ThresholdStore,
		writer:         opts.Writer,
		logger:         logger.With().Str("component", "monitor").Logger(),
	}

	m.manager = alerts.NewManager(m.persistAlert, logger)
	m.detector = detector.New(m.history, m.registry, cfg.Detector.ExclusionWindow, logger)
	return m
}

func (m *Monitor) persistAlert(alert alerts.Alert) {
	if m.writer != nil {
		m.writer.Enqueue(alert)
	}
}

// Warmup reloads unresolved alerts and persisted threshold overrides before
// ingestion starts, so dedup and summaries hold across restarts.
func (m *Monitor) Warmup(ctx context.Context) error {
	if m.alertStore != nil {
		unresolved, err := m.alertStore.ListUnresolvedAlerts(ctx)
		if err != nil {
			return fmt.Errorf("reload unresolved alerts: %w", err)
		}
		m.manager.Restore(unresolved)
		m.logger.Info().Int("count", len(unresolved)).Msg("restored unresolved alerts")
	}

	if m.thresholdStore != nil {
		records, err := m.thresholdStore.ListThresholds(ctx)
		if err != nil {
			return fmt.Errorf("reload thresholds: %w", err)
		}
		restored := 0
		for _, rec := range records {
			cfg := threshold.Config{
				Metric:     rec.Metric,
				Low:        rec.Low,
				Medium:     rec.Medium,
				High:       rec.High,
				Critical:   rec.Critical,
				Direction:  rec.Direction,
				Lookback:   rec.Lookback,
				AutoAction: rec.AutoAction,
			}
			if err := m.registry.Restore(rec.TenantID, rec.ScopeID, rec.AnomalyType, rec.ID, cfg, rec.IsEnabled); err != nil {
				m.logger.Warn().Err(err).
					Str("tenant", rec.TenantID).
					Str("type", string(rec.AnomalyType)).
					Msg("skipping invalid persisted threshold")
				continue
			}
			restored++
		}
		m.logger.Info().Int("count", restored).Msg("restored threshold overrides")
	}

	return nil
}

// RecordOptions qualify an ingested batch.
type RecordOptions struct {
	CampaignID *string
	KeywordID  *string
	Timestamp  *time.Time
}

// RecordMetrics ingests one batch for a tenant and scope, fanning out to one
// record+evaluate per known metric. A sparse or degenerate series never
// interrupts the rest of the batch, and persistence happens off this path.
// The returned alerts are the ones raised or refreshed by this batch.
func (m *Monitor) RecordMetrics(ctx context.Context, tenantID, scopeID string, values map[string]float64, opts RecordOptions) []alerts.Alert {
	ts := time.Now().UTC()
	if opts.Timestamp != nil {
		ts = opts.Timestamp.UTC()
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	touched := make([]alerts.Alert, 0)
	for _, name := range names {
		select {
		case <-ctx.Done():
			return touched
		default:
		}

		metrics.ObserveSample()
		outcome := m.detector.Evaluate(tenantID, scopeID, name, values[name], ts)
		metrics.ObserveEvaluation(outcome)
		if !outcome.Signal {
			continue
		}

		alert, created := m.manager.Upsert(tenantID, scopeID, opts.CampaignID, opts.KeywordID, *outcome.Candidate, ts)
		if created {
			metrics.ObserveAlertRaised(alert.Severity)
		}
		touched = append(touched, alert)
	}
	return touched
}

// ActiveAlerts lists unresolved alerts, most urgent first. severity may be
// empty for all tiers.
func (m *Monitor) ActiveAlerts(tenantID, scopeID, severity string, limit int) ([]alerts.Alert, error) {
	var sev anomaly.Severity
	if severity != "" {
		parsed, ok := anomaly.ParseSeverity(severity)
		if !ok {
			return nil, fmt.Errorf("unknown severity %q", severity)
		}
		sev = parsed
	}
	return m.manager.Active(tenantID, scopeID, sev, limit), nil
}

// AlertHistory lists alerts detected within the last daysBack days, resolved
// ones included. When a persistent store is configured it is consulted so
// history survives restarts; otherwise the in-memory table answers.
func (m *Monitor) AlertHistory(ctx context.Context, tenantID, scopeID string, daysBack, limit int) ([]alerts.Alert, error) {
	if daysBack <= 0 {
		daysBack = 30
	}
	if m.alertStore == nil {
		return m.manager.History(tenantID, scopeID, daysBack, limit), nil
	}

	since := time.Now().UTC().AddDate(0, 0, -daysBack)
	rows, err := m.alertStore.ListAlertsSince(ctx, tenantID, since, limit)
	if err != nil {
		return nil, err
	}
	if scopeID == "" {
		return rows, nil
	}
	filtered := rows[:0]
	for _, alert := range rows {
		if alert.ScopeID == scopeID {
			filtered = append(filtered, alert)
		}
	}
	return filtered, nil
}

// Acknowledge flags an alert as seen without touching its lifecycle.
func (m *Monitor) Acknowledge(id string) error {
	return m.manager.Acknowledge(id)
}

// Resolve terminates an alert. A later candidate for the same dedup key
// raises a fresh alert.
func (m *Monitor) Resolve(id string, notes string) error {
	if err := m.manager.Resolve(id, notes); err != nil {
		return err
	}
	metrics.ObserveAlertResolved(1)
	return nil
}

// BatchResolve resolves every open alert matching the filter and returns the
// count affected.
func (m *Monitor) BatchResolve(tenantID, scopeID, notes string) int {
	count := m.manager.BatchResolve(tenantID, scopeID, notes)
	metrics.ObserveAlertResolved(count)
	return count
}

// Summary aggregates a tenant's active alerts.
func (m *Monitor) Summary(tenantID string) alerts.Summary {
	return m.manager.Summary(tenantID)
}

// Thresholds lists the effective config per anomaly type for the tenant and
// scope, each tagged with whether a custom override supplied it.
func (m *Monitor) Thresholds(tenantID, scopeID string) map[anomaly.Type]threshold.EffectiveConfig {
	return m.registry.Merged(tenantID, scopeID)
}

// SetThreshold validates and installs a custom override, persisting it
// synchronously. On validation failure nothing changes anywhere.
func (m *Monitor) SetThreshold(ctx context.Context, tenantID, scopeID string, t anomaly.Type, cfg threshold.Config) (string, error) {
	if _, ok := threshold.Default(t); !ok {
		return "", &threshold.ValidationError{Reason: fmt.Sprintf("unknown anomaly type %q", t)}
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	if m.thresholdStore != nil {
		persistedID, err := m.thresholdStore.UpsertThreshold(ctx, storage.ThresholdRecord{
			ID:          id,
			TenantID:    tenantID,
			ScopeID:     scopeID,
			AnomalyType: t,
			Metric:      cfg.Metric,
			Low:         cfg.Low,
			Medium:      cfg.Medium,
			High:        cfg.High,
			Critical:    cfg.Critical,
			Direction:   cfg.Direction,
			Lookback:    cfg.Lookback,
			AutoAction:  cfg.AutoAction,
			IsEnabled:   true,
		})
		if err != nil {
			return "", fmt.Errorf("persist threshold: %w", err)
		}
		id = persistedID
	}

	if err := m.registry.Set(tenantID, scopeID, t, id, cfg); err != nil {
		return "", err
	}
	return id, nil
}

// ResetThreshold disables the custom override, reverting to the default. A
// missing override row is not an error; anything else from the store is.
func (m *Monitor) ResetThreshold(ctx context.Context, tenantID, scopeID string, t anomaly.Type) error {
	m.registry.Disable(tenantID, scopeID, t)

	if m.thresholdStore != nil {
		err := m.thresholdStore.SetThresholdEnabled(ctx, tenantID, scopeID, t, false)
		if err != nil && !errors.Is(err, storage.ErrThresholdNotFound) {
			return fmt.Errorf("persist threshold disable: %w", err)
		}
	}
	return nil
}

// Close flushes the async writer if one is attached.
func (m *Monitor) Close(ctx context.Context) error {
	if m.writer == nil {
		return nil
	}
	return m.writer.Close(ctx)
}
