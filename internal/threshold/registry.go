package threshold

import (
	"fmt"
	"sync"
	"time"

	"perf-anomaly-alerts/internal/anomaly"
)

// Config holds the severity cutoffs for one anomaly type. Cutoffs are
// fractional change magnitudes and must be strictly increasing.
type Config struct {
	Metric     string
	Low        float64
	Medium     float64
	High       float64
	Critical   float64
	Direction  anomaly.Direction
	Lookback   time.Duration
	AutoAction anomaly.AutoAction
}

// ValidationError reports a rejected threshold configuration. The previous
// configuration is left untouched when it is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid threshold config: %s", e.Reason)
}

// Validate checks the cutoff ordering invariant.
func (c Config) Validate() error {
	if c.Low <= 0 {
		return &ValidationError{Reason: "low cutoff must be greater than zero"}
	}
	if !(c.Low < c.Medium && c.Medium < c.High && c.High < c.Critical) {
		return &ValidationError{Reason: "cutoffs must satisfy low < medium < high < critical"}
	}
	if c.Lookback <= 0 {
		return &ValidationError{Reason: "lookback must be positive"}
	}
	switch c.Direction {
	case anomaly.DirectionUp, anomaly.DirectionDown, anomaly.DirectionBoth:
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown direction %q", c.Direction)}
	}
	return nil
}

// EffectiveConfig tags a config with its provenance for admin listings.
type EffectiveConfig struct {
	Config
	IsCustom bool
}

type overrideKey struct {
	TenantID string
	ScopeID  string
	Type     anomaly.Type
}

type override struct {
	ID      string
	Config  Config
	Enabled bool
}

// Registry resolves the severity thresholds in effect for a tenant and scope,
// layering enabled overrides on top of the compiled-in defaults.
type Registry struct {
	mu        sync.RWMutex
	overrides map[overrideKey]*override
}

// NewRegistry builds a Registry carrying only the defaults.
func NewRegistry() *Registry {
	return &Registry{overrides: make(map[overrideKey]*override)}
}

// defaults is the compiled-in threshold table, one entry per anomaly type.
// Validated at package init so a bad constant fails fast.
var defaults = map[anomaly.Type]Config{
	anomaly.TypeSpendSpike: {
		Metric: "spend", Low: 0.3, Medium: 0.5, High: 0.8, Critical: 1.5,
		Direction: anomaly.DirectionUp, Lookback: 24 * time.Hour, AutoAction: anomaly.ActionReview,
	},
	anomaly.TypeCPCSpike: {
		Metric: "cpc", Low: 0.2, Medium: 0.4, High: 0.6, Critical: 1.0,
		Direction: anomaly.DirectionUp, Lookback: 24 * time.Hour, AutoAction: anomaly.ActionReduceBid,
	},
	anomaly.TypeCTRDrop: {
		Metric: "ctr", Low: 0.2, Medium: 0.35, High: 0.5, Critical: 0.7,
		Direction: anomaly.DirectionDown, Lookback: 48 * time.Hour, AutoAction: anomaly.ActionReview,
	},
	anomaly.TypeConversionDrop: {
		Metric: "conversions", Low: 0.25, Medium: 0.4, High: 0.6, Critical: 0.8,
		Direction: anomaly.DirectionDown, Lookback: 48 * time.Hour, AutoAction: anomaly.ActionReview,
	},
	anomaly.TypeImpressionDrop: {
		Metric: "impressions", Low: 0.3, Medium: 0.5, High: 0.7, Critical: 0.9,
		Direction: anomaly.DirectionDown, Lookback: 24 * time.Hour, AutoAction: anomaly.ActionNone,
	},
}

func init() {
	for t, cfg := range defaults {
		if err := cfg.Validate(); err != nil {
			panic(fmt.Sprintf("default threshold for %s: %v", t, err))
		}
	}
}

// Default returns the compiled-in config for an anomaly type.
func Default(t anomaly.Type) (Config, bool) {
	cfg, ok := defaults[t]
	return cfg, ok
}

// Effective returns the config in force for (tenant, scope, type): a
// scope-specific enabled override first, then a tenant-wide one, then the
// default.
func (r *Registry) Effective(tenantID, scopeID string, t anomaly.Type) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ov, ok := r.overrides[overrideKey{tenantID, scopeID, t}]; ok && ov.Enabled {
		return ov.Config, true
	}
	if scopeID != "" {
		if ov, ok := r.overrides[overrideKey{tenantID, "", t}]; ok && ov.Enabled {
			return ov.Config, true
		}
	}
	cfg, ok := defaults[t]
	return cfg, ok
}

// Set installs or replaces the override for (tenant, scope, type). The
// replacement is atomic: on validation failure nothing changes.
func (r *Registry) Set(tenantID, scopeID string, t anomaly.Type, id string, cfg Config) error {
	if _, ok := defaults[t]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("unknown anomaly type %q", t)}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[overrideKey{tenantID, scopeID, t}] = &override{ID: id, Config: cfg, Enabled: true}
	return nil
}

// Disable marks the override inactive without discarding it; Effective falls
// back to the default until the override is set again.
func (r *Registry) Disable(tenantID, scopeID string, t anomaly.Type) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ov, ok := r.overrides[overrideKey{tenantID, scopeID, t}]
	if !ok || !ov.Enabled {
		return "", false
	}
	ov.Enabled = false
	return ov.ID, true
}

// Merged lists every anomaly type with the config in effect for the tenant
// and scope, tagged with whether a custom override supplied it.
func (r *Registry) Merged(tenantID, scopeID string) map[anomaly.Type]EffectiveConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make(map[anomaly.Type]EffectiveConfig, len(defaults))
	for t, def := range defaults {
		merged[t] = EffectiveConfig{Config: def}
		if ov, ok := r.overrides[overrideKey{tenantID, "", t}]; ok && ov.Enabled {
			merged[t] = EffectiveConfig{Config: ov.Config, IsCustom: true}
		}
		if ov, ok := r.overrides[overrideKey{tenantID, scopeID, t}]; ok && ov.Enabled && scopeID != "" {
			merged[t] = EffectiveConfig{Config: ov.Config, IsCustom: true}
		}
	}
	return merged
}

// Restore installs a persisted override without validation side effects on
// failure; invalid rows are skipped and reported to the caller.
func (r *Registry) Restore(tenantID, scopeID string, t anomaly.Type, id string, cfg Config, enabled bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[overrideKey{tenantID, scopeID, t}] = &override{ID: id, Config: cfg, Enabled: enabled}
	return nil
}
