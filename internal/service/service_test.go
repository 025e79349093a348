package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"perf-anomaly-alerts/internal/alerts"
	"perf-anomaly-alerts/internal/anomaly"
	"perf-anomaly-alerts/internal/config"
	"perf-anomaly-alerts/internal/storage"
	"perf-anomaly-alerts/internal/threshold"
)

func testConfig() *config.Config {
	return &config.Config{
		Detector: config.DetectorConfig{
			HistoryCapacity: 168,
			ExclusionWindow: time.Hour,
		},
	}
}

func newTestMonitor() *Monitor {
	return New(testConfig(), Options{}, zerolog.Nop())
}

func seedBaseline(t *testing.T, m *Monitor, values []float64, from time.Time) {
	t.Helper()
	ctx := context.Background()
	for i, v := range values {
		ts := from.Add(time.Duration(i) * time.Hour)
		m.RecordMetrics(ctx, "t1", "s1", map[string]float64{"cpc": v}, RecordOptions{Timestamp: &ts})
	}
}

func TestRecordMetricsRaisesAlertEndToEnd(t *testing.T) {
	m := newTestMonitor()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedBaseline(t, m, []float64{900, 1000, 1100, 950}, base)

	ts := base.Add(5 * time.Hour)
	campaign := "c42"
	touched := m.RecordMetrics(context.Background(), "t1", "s1", map[string]float64{"cpc": 1600}, RecordOptions{
		CampaignID: &campaign,
		Timestamp:  &ts,
	})

	if len(touched) != 1 {
		t.Fatalf("expected one alert from the batch, got %d", len(touched))
	}
	alert := touched[0]
	if alert.Type != anomaly.TypeCPCSpike || alert.Severity != anomaly.SeverityHigh {
		t.Fatalf("expected high cpc_spike, got %s/%s", alert.Type, alert.Severity)
	}
	if math.Abs(alert.BaselineValue-987.5) > 1e-9 {
		t.Fatalf("expected baseline 987.5, got %v", alert.BaselineValue)
	}
	if math.Abs(alert.ChangePercent-62.025316455696203) > 1e-6 {
		t.Fatalf("expected change percent ~62.03, got %v", alert.ChangePercent)
	}
	if alert.CampaignID == nil || *alert.CampaignID != "c42" {
		t.Fatalf("campaign qualifier should carry through, got %+v", alert.CampaignID)
	}

	summary := m.Summary("t1")
	if summary.TotalActive != 1 || !summary.NeedsAttention {
		t.Fatalf("summary should reflect the high alert: %+v", summary)
	}
}

func TestRecordMetricsSkipsUnknownAndSparseMetrics(t *testing.T) {
	m := newTestMonitor()
	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// A batch mixing an unmapped metric with series far too sparse to
	// classify must pass through silently.
	touched := m.RecordMetrics(context.Background(), "t1", "s1", map[string]float64{
		"cpc":         9999,
		"bounce_rate": 1,
	}, RecordOptions{Timestamp: &ts})

	if len(touched) != 0 {
		t.Fatalf("expected no alerts, got %d", len(touched))
	}
}

func TestRecordMetricsDeduplicatesAcrossBatches(t *testing.T) {
	m := newTestMonitor()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedBaseline(t, m, []float64{100, 100, 100, 100}, base)

	ts1 := base.Add(5 * time.Hour)
	first := m.RecordMetrics(context.Background(), "t1", "s1", map[string]float64{"cpc": 125}, RecordOptions{Timestamp: &ts1})
	ts2 := base.Add(5*time.Hour + 30*time.Minute)
	second := m.RecordMetrics(context.Background(), "t1", "s1", map[string]float64{"cpc": 205}, RecordOptions{Timestamp: &ts2})

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("both batches should touch one alert, got %d and %d", len(first), len(second))
	}
	if first[0].ID != second[0].ID {
		t.Fatal("persisting condition must update the same alert")
	}
	if second[0].Severity != anomaly.SeverityCritical {
		t.Fatalf("escalation should overwrite severity, got %s", second[0].Severity)
	}

	active, err := m.ActiveAlerts("t1", "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected one active alert, got %d", len(active))
	}
}

func TestAcknowledgeAndResolveLifecycle(t *testing.T) {
	m := newTestMonitor()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedBaseline(t, m, []float64{100, 100, 100, 100}, base)

	ts := base.Add(5 * time.Hour)
	touched := m.RecordMetrics(context.Background(), "t1", "s1", map[string]float64{"cpc": 205}, RecordOptions{Timestamp: &ts})
	alert := touched[0]

	if err := m.Acknowledge(alert.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Acknowledge("nope"); !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("unknown id must fail closed, got %v", err)
	}

	if err := m.Resolve(alert.ID, "bid fixed"); err != nil {
		t.Fatal(err)
	}
	active, _ := m.ActiveAlerts("t1", "", "", 0)
	if len(active) != 0 {
		t.Fatalf("resolved alert must leave the active set, got %d", len(active))
	}

	rows, err := m.AlertHistory(context.Background(), "t1", "", 7, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ResolvedAt == nil {
		t.Fatalf("history should retain the resolved alert: %+v", rows)
	}
}

func TestActiveAlertsRejectsUnknownSeverity(t *testing.T) {
	m := newTestMonitor()
	if _, err := m.ActiveAlerts("t1", "", "blocker", 0); err == nil {
		t.Fatal("unknown severity name must be rejected")
	}
}

func TestSetThresholdValidatesAndApplies(t *testing.T) {
	m := newTestMonitor()
	ctx := context.Background()

	bad := threshold.Config{
		Metric: "cpc", Low: 0.4, Medium: 0.3, High: 0.6, Critical: 1.0,
		Direction: anomaly.DirectionUp, Lookback: 24 * time.Hour, AutoAction: anomaly.ActionNone,
	}
	if _, err := m.SetThreshold(ctx, "t1", "s1", anomaly.TypeCPCSpike, bad); err == nil {
		t.Fatal("non-increasing cutoffs must be rejected")
	}

	good := bad
	good.Low, good.Medium = 0.1, 0.2
	good.High, good.Critical = 0.3, 0.5
	id, err := m.SetThreshold(ctx, "t1", "s1", anomaly.TypeCPCSpike, good)
	if err != nil {
		t.Fatalf("valid config should be accepted: %v", err)
	}
	if id == "" {
		t.Fatal("set should return a threshold id")
	}

	merged := m.Thresholds("t1", "s1")
	if !merged[anomaly.TypeCPCSpike].IsCustom {
		t.Fatal("override should be tagged custom")
	}

	if err := m.ResetThreshold(ctx, "t1", "s1", anomaly.TypeCPCSpike); err != nil {
		t.Fatal(err)
	}
	merged = m.Thresholds("t1", "s1")
	if merged[anomaly.TypeCPCSpike].IsCustom {
		t.Fatal("reset should revert to the default")
	}
}

type fakeThresholdStore struct {
	disableErr error
}

func (f *fakeThresholdStore) UpsertThreshold(ctx context.Context, rec storage.ThresholdRecord) (string, error) {
	return "th-1", nil
}

func (f *fakeThresholdStore) SetThresholdEnabled(ctx context.Context, tenantID, scopeID string, t anomaly.Type, enabled bool) error {
	return f.disableErr
}

func (f *fakeThresholdStore) ListThresholds(ctx context.Context) ([]storage.ThresholdRecord, error) {
	return nil, nil
}

func TestResetThresholdSurfacesStoreFailures(t *testing.T) {
	store := &fakeThresholdStore{disableErr: errors.New("connection refused")}
	m := New(testConfig(), Options{ThresholdStore: store}, zerolog.Nop())
	ctx := context.Background()

	// No in-memory override exists here, but an override row written by
	// another process might. A database failure has to surface or that row
	// survives the reset unnoticed.
	if err := m.ResetThreshold(ctx, "t1", "s1", anomaly.TypeCPCSpike); !errors.Is(err, store.disableErr) {
		t.Fatalf("store failure must propagate, got %v", err)
	}

	store.disableErr = storage.ErrThresholdNotFound
	if err := m.ResetThreshold(ctx, "t1", "s1", anomaly.TypeCPCSpike); err != nil {
		t.Fatalf("missing override row is not an error, got %v", err)
	}
}

func TestBatchResolveCounts(t *testing.T) {
	m := newTestMonitor()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedBaseline(t, m, []float64{100, 100, 100, 100}, base)

	ts := base.Add(5 * time.Hour)
	m.RecordMetrics(context.Background(), "t1", "s1", map[string]float64{"cpc": 205}, RecordOptions{Timestamp: &ts})

	if count := m.BatchResolve("t1", "", "sweep"); count != 1 {
		t.Fatalf("expected one resolution, got %d", count)
	}
	if count := m.BatchResolve("t1", "", "sweep"); count != 0 {
		t.Fatalf("second sweep should find nothing, got %d", count)
	}
}
