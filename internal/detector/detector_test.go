package detector

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"perf-anomaly-alerts/internal/anomaly"
	"perf-anomaly-alerts/internal/history"
	"perf-anomaly-alerts/internal/threshold"
)

func newTestDetector() (*Detector, *history.Store) {
	store := history.NewStore(0)
	return New(store, threshold.NewRegistry(), time.Hour, zerolog.Nop()), store
}

func seed(store *history.Store, metric string, values []float64, from time.Time) {
	key := history.Key{TenantID: "t1", ScopeID: "s1", Metric: metric}
	for i, v := range values {
		store.Record(key, v, from.Add(time.Duration(i)*time.Hour))
	}
}

func TestEvaluateUnknownMetricIsNoOp(t *testing.T) {
	d, _ := newTestDetector()
	outcome := d.Evaluate("t1", "s1", "bounce_rate", 1.0, time.Now().UTC())
	if outcome.Signal {
		t.Fatal("unmapped metric must not signal")
	}
	if outcome.Reason != ReasonUnknownMetric {
		t.Fatalf("expected unknown_metric, got %q", outcome.Reason)
	}
}

func TestEvaluateInsufficientData(t *testing.T) {
	d, store := newTestDetector()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seed(store, "cpc", []float64{1.0, 1.1}, base)

	outcome := d.Evaluate("t1", "s1", "cpc", 5.0, base.Add(5*time.Hour))
	if outcome.Signal {
		t.Fatal("fewer than 3 baseline points must not signal")
	}
	if outcome.Reason != ReasonInsufficientData {
		t.Fatalf("expected insufficient_data, got %q", outcome.Reason)
	}
}

func TestEvaluateZeroBaseline(t *testing.T) {
	d, store := newTestDetector()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seed(store, "cpc", []float64{0, 0, 0, 0}, base)

	outcome := d.Evaluate("t1", "s1", "cpc", 5.0, base.Add(5*time.Hour))
	if outcome.Signal {
		t.Fatal("zero mean must not signal")
	}
	if outcome.Reason != ReasonZeroBaseline {
		t.Fatalf("expected zero_baseline, got %q", outcome.Reason)
	}
}

func TestEvaluateDirectionGate(t *testing.T) {
	d, store := newTestDetector()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// cpc_spike watches upward moves only.
	seed(store, "cpc", []float64{100, 100, 100, 100}, base)

	outcome := d.Evaluate("t1", "s1", "cpc", 10, base.Add(5*time.Hour))
	if outcome.Signal {
		t.Fatal("a drop must not trigger an up-direction anomaly")
	}
	if outcome.Reason != ReasonWrongDirection {
		t.Fatalf("expected wrong_direction, got %q", outcome.Reason)
	}
}

func TestEvaluateSeverityLadder(t *testing.T) {
	// Default cpc thresholds: low 0.2, medium 0.4, high 0.6, critical 1.0.
	cases := []struct {
		current  float64
		severity anomaly.Severity
		signal   bool
	}{
		{110, 0, false},
		{125, anomaly.SeverityLow, true},
		{145, anomaly.SeverityMedium, true},
		{165, anomaly.SeverityHigh, true},
		{205, anomaly.SeverityCritical, true},
	}

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range cases {
		d, store := newTestDetector()
		seed(store, "cpc", []float64{100, 100, 100, 100}, base)

		outcome := d.Evaluate("t1", "s1", "cpc", tc.current, base.Add(5*time.Hour))
		if outcome.Signal != tc.signal {
			t.Fatalf("current=%v: expected signal=%v, got %+v", tc.current, tc.signal, outcome)
		}
		if !tc.signal {
			if outcome.Reason != ReasonBelowThreshold {
				t.Fatalf("current=%v: expected below_threshold, got %q", tc.current, outcome.Reason)
			}
			continue
		}
		if outcome.Candidate.Severity != tc.severity {
			t.Fatalf("current=%v: expected severity %s, got %s", tc.current, tc.severity, outcome.Candidate.Severity)
		}
	}
}

func TestEvaluateEndToEndScenario(t *testing.T) {
	d, store := newTestDetector()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seed(store, "cpc", []float64{900, 1000, 1100, 950}, base)

	outcome := d.Evaluate("t1", "s1", "cpc", 1600, base.Add(5*time.Hour))
	if !outcome.Signal {
		t.Fatalf("expected a candidate, got %+v", outcome)
	}

	c := outcome.Candidate
	if c.Type != anomaly.TypeCPCSpike {
		t.Fatalf("expected cpc_spike, got %s", c.Type)
	}
	if c.Severity != anomaly.SeverityHigh {
		t.Fatalf("expected high severity for a 62%% move, got %s", c.Severity)
	}
	if math.Abs(c.BaselineValue-987.5) > 1e-9 {
		t.Fatalf("expected baseline 987.5, got %v", c.BaselineValue)
	}
	if math.Abs(c.ChangePercent-62.025316455696203) > 1e-6 {
		t.Fatalf("expected change percent ~62.03, got %v", c.ChangePercent)
	}
	if c.ZScore <= 0 {
		t.Fatalf("z-score should be positive for an upward spike, got %v", c.ZScore)
	}
}

func TestEvaluateHonoursCustomThreshold(t *testing.T) {
	store := history.NewStore(0)
	registry := threshold.NewRegistry()
	cfg := threshold.Config{
		Metric:     "cpc",
		Low:        0.05,
		Medium:     0.1,
		High:       0.15,
		Critical:   0.2,
		Direction:  anomaly.DirectionUp,
		Lookback:   24 * time.Hour,
		AutoAction: anomaly.ActionReduceBid,
	}
	if err := registry.Set("t1", "s1", anomaly.TypeCPCSpike, "id-1", cfg); err != nil {
		t.Fatal(err)
	}

	d := New(store, registry, time.Hour, zerolog.Nop())
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seed(store, "cpc", []float64{100, 100, 100, 100}, base)

	outcome := d.Evaluate("t1", "s1", "cpc", 125, base.Add(5*time.Hour))
	if !outcome.Signal || outcome.Candidate.Severity != anomaly.SeverityCritical {
		t.Fatalf("custom thresholds should classify 25%% as critical, got %+v", outcome)
	}
}

func TestEvaluateExcludesFreshSamplesFromBaseline(t *testing.T) {
	d, store := newTestDetector()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seed(store, "cpc", []float64{100, 100, 100, 100}, base)

	now := base.Add(5 * time.Hour)
	key := history.Key{TenantID: "t1", ScopeID: "s1", Metric: "cpc"}
	// A huge sample inside the exclusion window must not lift the mean.
	store.Record(key, 1000, now.Add(-10*time.Minute))

	outcome := d.Evaluate("t1", "s1", "cpc", 205, now)
	if !outcome.Signal || outcome.Candidate.Severity != anomaly.SeverityCritical {
		t.Fatalf("baseline should stay at 100, got %+v", outcome)
	}
	if outcome.Candidate.BaselineValue != 100 {
		t.Fatalf("expected baseline 100, got %v", outcome.Candidate.BaselineValue)
	}
}
