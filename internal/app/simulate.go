package app

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"perf-anomaly-alerts/internal/scheduler"
	"perf-anomaly-alerts/internal/service"
)

// steady-state values the synthetic generator oscillates around.
var simulateBaselines = map[string]float64{
	"spend":       250.0,
	"cpc":         1.2,
	"ctr":         0.045,
	"conversions": 40.0,
	"impressions": 52000.0,
}

// Simulate drives synthetic metric batches through the full pipeline on the
// scheduler cadence, injecting a deviation after SpikeAfter ticks so the
// whole detect-and-alert path can be exercised without a real ingestion
// caller.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.Ticks <= 0 {
		return errors.New("--ticks must be greater than zero")
	}
	if opts.SpikeFactor <= 0 {
		return errors.New("--spike-factor must be greater than zero")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = a.Config.Ingest.Interval
	}

	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	// Seed enough history that the first live ticks have a usable baseline.
	seedStart := time.Now().UTC().Add(-time.Duration(opts.Ticks+48) * time.Hour)
	rng := rand.New(rand.NewSource(seedStart.UnixNano()))
	for i := 0; i < 48; i++ {
		ts := seedStart.Add(time.Duration(i) * time.Hour)
		monitor.RecordMetrics(ctx, opts.Tenant, opts.Scope, jitteredBatch(rng, 1.0), service.RecordOptions{Timestamp: &ts})
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     interval,
		AlignToStart: a.Config.Ingest.AlignToBucket,
		StartupDelay: a.Config.Ingest.StartupDelay,
	}, a.Logger)

	tick := 0
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	err = sched.Run(runCtx, func(tickCtx context.Context, bucket time.Time) error {
		tick++
		factor := 1.0
		if tick > opts.SpikeAfter {
			factor = opts.SpikeFactor
		}

		touched := monitor.RecordMetrics(tickCtx, opts.Tenant, opts.Scope, jitteredBatch(rng, factor), service.RecordOptions{Timestamp: &bucket})
		a.Logger.Info().
			Int("tick", tick).
			Float64("factor", factor).
			Int("alerts", len(touched)).
			Msg("simulated batch ingested")

		if tick >= opts.Ticks {
			cancel()
		}
		return nil
	})
	if errors.Is(err, context.Canceled) && tick >= opts.Ticks {
		return nil
	}
	return err
}

// jitteredBatch produces one batch of all monitored metrics around their
// steady-state values. Spike metrics scale up, drop metrics scale down, so a
// factor above 1 deviates every metric in its alerting direction.
func jitteredBatch(rng *rand.Rand, factor float64) map[string]float64 {
	batch := make(map[string]float64, len(simulateBaselines))
	for metric, base := range simulateBaselines {
		jitter := 1 + (rng.Float64()-0.5)*0.06
		value := base * jitter
		switch metric {
		case "spend", "cpc":
			value *= factor
		default:
			value /= factor
		}
		batch[metric] = value
	}
	return batch
}
