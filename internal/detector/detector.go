package detector

import (
	"time"

	"github.com/rs/zerolog"

	"perf-anomaly-alerts/internal/anomaly"
	"perf-anomaly-alerts/internal/history"
	"perf-anomaly-alerts/internal/stats"
	"perf-anomaly-alerts/internal/threshold"
)

// DefaultExclusion keeps the most recent hour of samples out of the baseline
// so the current observation never contaminates its own reference window.
const DefaultExclusion = time.Hour

// NoSignalReason explains why an evaluation produced no candidate.
type NoSignalReason string

const (
	ReasonNone             NoSignalReason = ""
	ReasonUnknownMetric    NoSignalReason = "unknown_metric"
	ReasonInsufficientData NoSignalReason = "insufficient_data"
	ReasonZeroBaseline     NoSignalReason = "zero_baseline"
	ReasonWrongDirection   NoSignalReason = "wrong_direction"
	ReasonBelowThreshold   NoSignalReason = "below_threshold"
)

// Outcome is the tagged result of one evaluation. Absence of a signal is a
// first-class value, not an error.
type Outcome struct {
	Signal    bool
	Reason    NoSignalReason
	Candidate *anomaly.Candidate
}

func noSignal(reason NoSignalReason) Outcome {
	return Outcome{Reason: reason}
}

// Detector decides whether one incoming sample deviates significantly from
// its recent baseline.
type Detector struct {
	store     *history.Store
	registry  *threshold.Registry
	exclusion time.Duration
	logger    zerolog.Logger
}

// New constructs a Detector. A non-positive exclusion falls back to
// DefaultExclusion.
func New(store *history.Store, registry *threshold.Registry, exclusion time.Duration, logger zerolog.Logger) *Detector {
	if exclusion <= 0 {
		exclusion = DefaultExclusion
	}
	return &Detector{
		store:     store,
		registry:  registry,
		exclusion: exclusion,
		logger:    logger.With().Str("component", "detector").Logger(),
	}
}

// Evaluate records the sample and classifies it against the effective
// thresholds. It never fails: sparse or degenerate series yield a no-signal
// outcome so one bad series cannot interrupt a batch.
func (d *Detector) Evaluate(tenantID, scopeID, metric string, value float64, ts time.Time) Outcome {
	key := history.Key{TenantID: tenantID, ScopeID: scopeID, Metric: metric}
	d.store.Record(key, value, ts)

	anomalyType, ok := anomaly.TypeForMetric(metric)
	if !ok {
		return noSignal(ReasonUnknownMetric)
	}

	cfg, ok := d.registry.Effective(tenantID, scopeID, anomalyType)
	if !ok {
		return noSignal(ReasonUnknownMetric)
	}

	baselineValues := d.store.BaselineValues(key, cfg.Lookback, d.exclusion, ts)
	baseline := stats.Compute(baselineValues)
	if !baseline.Valid() {
		return noSignal(ReasonInsufficientData)
	}

	change, defined := stats.ChangeFraction(value, baseline.Mean)
	if !defined {
		return noSignal(ReasonZeroBaseline)
	}

	switch cfg.Direction {
	case anomaly.DirectionUp:
		if change <= 0 {
			return noSignal(ReasonWrongDirection)
		}
	case anomaly.DirectionDown:
		if change >= 0 {
			return noSignal(ReasonWrongDirection)
		}
	}

	severity, ok := classify(change, cfg)
	if !ok {
		return noSignal(ReasonBelowThreshold)
	}

	candidate := &anomaly.Candidate{
		Type:          anomalyType,
		Severity:      severity,
		Metric:        metric,
		CurrentValue:  value,
		BaselineValue: baseline.Mean,
		ChangePercent: change * 100,
		ZScore:        stats.ZScore(baselineValues, value),
	}

	d.logger.Debug().
		Str("tenant", tenantID).
		Str("scope", scopeID).
		Str("metric", metric).
		Str("severity", severity.String()).
		Float64("change_pct", candidate.ChangePercent).
		Msg("anomaly candidate")

	return Outcome{Signal: true, Candidate: candidate}
}

// classify picks the highest tier whose cutoff the change magnitude meets.
func classify(change float64, cfg threshold.Config) (anomaly.Severity, bool) {
	magnitude := change
	if magnitude < 0 {
		magnitude = -magnitude
	}

	switch {
	case magnitude >= cfg.Critical:
		return anomaly.SeverityCritical, true
	case magnitude >= cfg.High:
		return anomaly.SeverityHigh, true
	case magnitude >= cfg.Medium:
		return anomaly.SeverityMedium, true
	case magnitude >= cfg.Low:
		return anomaly.SeverityLow, true
	default:
		return 0, false
	}
}
