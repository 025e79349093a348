package threshold

import (
	"testing"
	"time"

	"perf-anomaly-alerts/internal/anomaly"
)

func validConfig() Config {
	return Config{
		Metric:     "cpc",
		Low:        0.1,
		Medium:     0.2,
		High:       0.3,
		Critical:   0.5,
		Direction:  anomaly.DirectionUp,
		Lookback:   24 * time.Hour,
		AutoAction: anomaly.ActionReview,
	}
}

func TestSetRejectsNonIncreasingCutoffs(t *testing.T) {
	registry := NewRegistry()

	good := validConfig()
	if err := registry.Set("t1", "", anomaly.TypeCPCSpike, "id-1", good); err != nil {
		t.Fatalf("valid config should be accepted: %v", err)
	}

	bad := []Config{
		func() Config { c := validConfig(); c.Low = 0; return c }(),
		func() Config { c := validConfig(); c.Medium = c.Low; return c }(),
		func() Config { c := validConfig(); c.High = 0.15; return c }(),
		func() Config { c := validConfig(); c.Critical = c.High; return c }(),
		func() Config { c := validConfig(); c.Lookback = 0; return c }(),
		func() Config { c := validConfig(); c.Direction = "sideways"; return c }(),
	}

	for i, cfg := range bad {
		err := registry.Set("t1", "", anomaly.TypeCPCSpike, "id-2", cfg)
		if err == nil {
			t.Fatalf("case %d: invalid config must be rejected", i)
		}
		if _, ok := err.(*ValidationError); !ok {
			t.Fatalf("case %d: expected ValidationError, got %T", i, err)
		}

		// Atomic reject: the previously stored config is untouched.
		effective, _ := registry.Effective("t1", "", anomaly.TypeCPCSpike)
		if effective != good {
			t.Fatalf("case %d: stored config changed after rejected set: %+v", i, effective)
		}
	}
}

func TestEffectiveFallsBackToDefault(t *testing.T) {
	registry := NewRegistry()

	def, ok := Default(anomaly.TypeCPCSpike)
	if !ok {
		t.Fatal("default for cpc_spike must exist")
	}

	effective, ok := registry.Effective("t1", "s1", anomaly.TypeCPCSpike)
	if !ok {
		t.Fatal("effective config should resolve")
	}
	if effective != def {
		t.Fatalf("expected default config, got %+v", effective)
	}
}

func TestEffectivePrefersScopeOverTenantOverride(t *testing.T) {
	registry := NewRegistry()

	tenantWide := validConfig()
	tenantWide.Low = 0.11
	if err := registry.Set("t1", "", anomaly.TypeCPCSpike, "id-t", tenantWide); err != nil {
		t.Fatal(err)
	}

	scoped := validConfig()
	scoped.Low = 0.12
	if err := registry.Set("t1", "s1", anomaly.TypeCPCSpike, "id-s", scoped); err != nil {
		t.Fatal(err)
	}

	effective, _ := registry.Effective("t1", "s1", anomaly.TypeCPCSpike)
	if effective.Low != 0.12 {
		t.Fatalf("scope override should win, got low=%v", effective.Low)
	}

	effective, _ = registry.Effective("t1", "s2", anomaly.TypeCPCSpike)
	if effective.Low != 0.11 {
		t.Fatalf("tenant-wide override should apply to other scopes, got low=%v", effective.Low)
	}
}

func TestDisableFallsBackWithoutDeleting(t *testing.T) {
	registry := NewRegistry()

	cfg := validConfig()
	if err := registry.Set("t1", "", anomaly.TypeCPCSpike, "id-1", cfg); err != nil {
		t.Fatal(err)
	}

	id, ok := registry.Disable("t1", "", anomaly.TypeCPCSpike)
	if !ok || id != "id-1" {
		t.Fatalf("disable should report the override id, got %q %v", id, ok)
	}

	def, _ := Default(anomaly.TypeCPCSpike)
	effective, _ := registry.Effective("t1", "", anomaly.TypeCPCSpike)
	if effective != def {
		t.Fatalf("disabled override must fall back to default, got %+v", effective)
	}

	if _, ok := registry.Disable("t1", "", anomaly.TypeCPCSpike); ok {
		t.Fatal("disabling an already-disabled override should report false")
	}
}

func TestMergedTagsCustomConfigs(t *testing.T) {
	registry := NewRegistry()

	cfg := validConfig()
	if err := registry.Set("t1", "s1", anomaly.TypeCPCSpike, "id-1", cfg); err != nil {
		t.Fatal(err)
	}

	merged := registry.Merged("t1", "s1")
	if len(merged) != len(anomaly.KnownTypes()) {
		t.Fatalf("merged should cover every anomaly type, got %d", len(merged))
	}
	if !merged[anomaly.TypeCPCSpike].IsCustom {
		t.Fatal("overridden type should be tagged custom")
	}
	if merged[anomaly.TypeSpendSpike].IsCustom {
		t.Fatal("untouched type should not be tagged custom")
	}
}

func TestRestoreKeepsDisabledState(t *testing.T) {
	registry := NewRegistry()

	cfg := validConfig()
	if err := registry.Restore("t1", "", anomaly.TypeCPCSpike, "id-1", cfg, false); err != nil {
		t.Fatal(err)
	}

	def, _ := Default(anomaly.TypeCPCSpike)
	effective, _ := registry.Effective("t1", "", anomaly.TypeCPCSpike)
	if effective != def {
		t.Fatal("restored disabled override must not take effect")
	}
}
