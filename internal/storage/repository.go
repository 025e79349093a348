package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"perf-anomaly-alerts/internal/alerts"
	"perf-anomaly-alerts/internal/anomaly"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrThresholdNotFound indicates no override row matched the key.
	ErrThresholdNotFound = errors.New("storage: threshold not found")
)

const (
	upsertAlertSQL = `INSERT INTO alerts (
        id,
        tenant_id,
        scope_id,
        campaign_id,
        keyword_id,
        anomaly_type,
        severity,
        metric_name,
        current_value,
        baseline_value,
        change_percent,
        z_score,
        detected_at,
        acknowledged,
        resolved_at,
        notes,
        seq
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
    )
    ON CONFLICT (id) DO UPDATE
    SET
        severity       = EXCLUDED.severity,
        current_value  = EXCLUDED.current_value,
        baseline_value = EXCLUDED.baseline_value,
        change_percent = EXCLUDED.change_percent,
        z_score        = EXCLUDED.z_score,
        detected_at    = EXCLUDED.detected_at,
        acknowledged   = EXCLUDED.acknowledged,
        resolved_at    = EXCLUDED.resolved_at,
        notes          = EXCLUDED.notes,
        seq            = EXCLUDED.seq
    WHERE alerts.seq < EXCLUDED.seq;`

	selectAlertColumns = `SELECT
        id,
        tenant_id,
        scope_id,
        campaign_id,
        keyword_id,
        anomaly_type,
        severity,
        metric_name,
        current_value,
        baseline_value,
        change_percent,
        z_score,
        detected_at,
        acknowledged,
        resolved_at,
        notes,
        seq
    FROM alerts`

	listUnresolvedAlertsSQL = selectAlertColumns + `
    WHERE resolved_at IS NULL
    ORDER BY detected_at;`

	listAlertsSinceSQL = selectAlertColumns + `
    WHERE tenant_id = $1
      AND detected_at >= $2
    ORDER BY detected_at DESC
    LIMIT $3;`

	upsertThresholdSQL = `INSERT INTO thresholds (
        id,
        tenant_id,
        scope_id,
        anomaly_type,
        metric_name,
        low_cutoff,
        medium_cutoff,
        high_cutoff,
        critical_cutoff,
        direction,
        lookback_seconds,
        auto_action,
        is_enabled,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
    )
    ON CONFLICT (tenant_id, scope_id, anomaly_type) DO UPDATE
    SET
        metric_name      = EXCLUDED.metric_name,
        low_cutoff       = EXCLUDED.low_cutoff,
        medium_cutoff    = EXCLUDED.medium_cutoff,
        high_cutoff      = EXCLUDED.high_cutoff,
        critical_cutoff  = EXCLUDED.critical_cutoff,
        direction        = EXCLUDED.direction,
        lookback_seconds = EXCLUDED.lookback_seconds,
        auto_action      = EXCLUDED.auto_action,
        is_enabled       = EXCLUDED.is_enabled,
        updated_at       = EXCLUDED.updated_at
    RETURNING id;`

	setThresholdEnabledSQL = `UPDATE thresholds
    SET is_enabled = $4, updated_at = $5
    WHERE tenant_id = $1
      AND scope_id = $2
      AND anomaly_type = $3;`

	listThresholdsSQL = `SELECT
        id,
        tenant_id,
        scope_id,
        anomaly_type,
        metric_name,
        low_cutoff,
        medium_cutoff,
        high_cutoff,
        critical_cutoff,
        direction,
        lookback_seconds,
        auto_action,
        is_enabled,
        updated_at
    FROM thresholds
    ORDER BY tenant_id, scope_id, anomaly_type;`
)

// AlertStore defines operations for alert persistence.
type AlertStore interface {
	UpsertAlert(ctx context.Context, alert alerts.Alert) error
	ListUnresolvedAlerts(ctx context.Context) ([]alerts.Alert, error)
	ListAlertsSince(ctx context.Context, tenantID string, since time.Time, limit int) ([]alerts.Alert, error)
}

// ThresholdStore defines operations for threshold override persistence.
type ThresholdStore interface {
	UpsertThreshold(ctx context.Context, rec ThresholdRecord) (string, error)
	SetThresholdEnabled(ctx context.Context, tenantID, scopeID string, t anomaly.Type, enabled bool) error
	ListThresholds(ctx context.Context) ([]ThresholdRecord, error)
}

// Store aggregates access to alerts and thresholds.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// numeric serialises a float for a NUMERIC column without binary-float noise.
func numeric(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func parseNumeric(raw, column string) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", column, err)
	}
	return d.InexactFloat64(), nil
}

// UpsertAlert persists or updates an alert row keyed by its id.
func (s *Store) UpsertAlert(ctx context.Context, alert alerts.Alert) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var campaign, keyword, notes interface{}
	if alert.CampaignID != nil {
		campaign = *alert.CampaignID
	}
	if alert.KeywordID != nil {
		keyword = *alert.KeywordID
	}
	if alert.Notes != nil {
		notes = *alert.Notes
	}

	var resolvedAt interface{}
	if alert.ResolvedAt != nil {
		resolvedAt = *alert.ResolvedAt
	}

	_, execErr := pool.Exec(ctx, upsertAlertSQL,
		alert.ID,
		alert.TenantID,
		alert.ScopeID,
		campaign,
		keyword,
		string(alert.Type),
		alert.Severity.String(),
		alert.Metric,
		numeric(alert.CurrentValue),
		numeric(alert.BaselineValue),
		numeric(alert.ChangePercent),
		numeric(alert.ZScore),
		alert.DetectedAt,
		alert.Acknowledged,
		resolvedAt,
		notes,
		int64(alert.Seq),
	)
	if execErr != nil {
		return fmt.Errorf("upsert alert: %w", execErr)
	}
	return nil
}

// ListUnresolvedAlerts loads every alert whose lifecycle is still open. Used
// to warm the in-memory manager on startup.
func (s *Store) ListUnresolvedAlerts(ctx context.Context) ([]alerts.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listUnresolvedAlertsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list unresolved alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// ListAlertsSince lists a tenant's alerts detected at or after since, newest
// first, resolved ones included.
func (s *Store) ListAlertsSince(ctx context.Context, tenantID string, since time.Time, limit int) ([]alerts.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsSinceSQL, tenantID, since, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts since: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func collectAlerts(rows pgx.Rows) ([]alerts.Alert, error) {
	result := make([]alerts.Alert, 0)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		result = append(result, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return result, nil
}

func scanAlert(rows pgx.Rows) (alerts.Alert, error) {
	var (
		alert       alerts.Alert
		campaign    sql.NullString
		keyword     sql.NullString
		anomalyType string
		severity    string
		currentStr  string
		baselineStr string
		changeStr   string
		zScoreStr   string
		resolvedAt  sql.NullTime
		notes       sql.NullString
		seq         int64
	)

	if err := rows.Scan(
		&alert.ID,
		&alert.TenantID,
		&alert.ScopeID,
		&campaign,
		&keyword,
		&anomalyType,
		&severity,
		&alert.Metric,
		&currentStr,
		&baselineStr,
		&changeStr,
		&zScoreStr,
		&alert.DetectedAt,
		&alert.Acknowledged,
		&resolvedAt,
		&notes,
		&seq,
	); err != nil {
		return alerts.Alert{}, err
	}
	alert.Seq = uint64(seq)

	alert.Type = anomaly.Type(anomalyType)
	sev, ok := anomaly.ParseSeverity(severity)
	if !ok {
		return alerts.Alert{}, fmt.Errorf("unknown severity %q for alert %s", severity, alert.ID)
	}
	alert.Severity = sev

	var err error
	if alert.CurrentValue, err = parseNumeric(currentStr, "current_value"); err != nil {
		return alerts.Alert{}, err
	}
	if alert.BaselineValue, err = parseNumeric(baselineStr, "baseline_value"); err != nil {
		return alerts.Alert{}, err
	}
	if alert.ChangePercent, err = parseNumeric(changeStr, "change_percent"); err != nil {
		return alerts.Alert{}, err
	}
	if alert.ZScore, err = parseNumeric(zScoreStr, "z_score"); err != nil {
		return alerts.Alert{}, err
	}

	if campaign.Valid {
		v := campaign.String
		alert.CampaignID = &v
	}
	if keyword.Valid {
		v := keyword.String
		alert.KeywordID = &v
	}
	if resolvedAt.Valid {
		v := resolvedAt.Time
		alert.ResolvedAt = &v
	}
	if notes.Valid {
		v := notes.String
		alert.Notes = &v
	}

	return alert, nil
}

// UpsertThreshold persists a threshold override and returns the row id.
func (s *Store) UpsertThreshold(ctx context.Context, rec ThresholdRecord) (string, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", err
	}

	var id string
	row := pool.QueryRow(ctx, upsertThresholdSQL,
		rec.ID,
		rec.TenantID,
		rec.ScopeID,
		string(rec.AnomalyType),
		rec.Metric,
		numeric(rec.Low),
		numeric(rec.Medium),
		numeric(rec.High),
		numeric(rec.Critical),
		string(rec.Direction),
		int64(rec.Lookback/time.Second),
		string(rec.AutoAction),
		rec.IsEnabled,
		time.Now().UTC(),
	)
	if scanErr := row.Scan(&id); scanErr != nil {
		return "", fmt.Errorf("upsert threshold: %w", scanErr)
	}
	return id, nil
}

// SetThresholdEnabled flips the soft-enable flag on an override row.
func (s *Store) SetThresholdEnabled(ctx context.Context, tenantID, scopeID string, t anomaly.Type, enabled bool) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, setThresholdEnabledSQL, tenantID, scopeID, string(t), enabled, time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("set threshold enabled: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrThresholdNotFound
	}
	return nil
}

// ListThresholds loads every persisted override, disabled rows included, so
// the registry can restore soft-toggled state on startup.
func (s *Store) ListThresholds(ctx context.Context) ([]ThresholdRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listThresholdsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list thresholds: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ThresholdRecord, 0)
	for rows.Next() {
		var (
			rec             ThresholdRecord
			anomalyType     string
			lowStr          string
			mediumStr       string
			highStr         string
			criticalStr     string
			direction       string
			lookbackSeconds int64
			autoAction      string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.ScopeID,
			&anomalyType,
			&rec.Metric,
			&lowStr,
			&mediumStr,
			&highStr,
			&criticalStr,
			&direction,
			&lookbackSeconds,
			&autoAction,
			&rec.IsEnabled,
			&rec.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rec.AnomalyType = anomaly.Type(anomalyType)
		rec.Direction = anomaly.Direction(direction)
		rec.AutoAction = anomaly.AutoAction(autoAction)
		rec.Lookback = time.Duration(lookbackSeconds) * time.Second

		if rec.Low, err = parseNumeric(lowStr, "low_cutoff"); err != nil {
			return nil, err
		}
		if rec.Medium, err = parseNumeric(mediumStr, "medium_cutoff"); err != nil {
			return nil, err
		}
		if rec.High, err = parseNumeric(highStr, "high_cutoff"); err != nil {
			return nil, err
		}
		if rec.Critical, err = parseNumeric(criticalStr, "critical_cutoff"); err != nil {
			return nil, err
		}

		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

var (
	_ AlertStore     = (*Store)(nil)
	_ ThresholdStore = (*Store)(nil)
)
