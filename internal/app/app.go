package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"perf-anomaly-alerts/internal/config"
	"perf-anomaly-alerts/internal/metrics"
	"perf-anomaly-alerts/internal/service"
	"perf-anomaly-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newMonitor wires a Monitor with whatever persistence is configured, warms
// it from storage, and returns a cleanup that flushes pending writes.
func (a *App) newMonitor(ctx context.Context) (*service.Monitor, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}

	opts := service.Options{}
	var writer *storage.AsyncWriter
	if store != nil {
		writer = storage.NewAsyncWriter(store, storage.AsyncWriterOptions{
			QueueSize:    a.Config.Persistence.QueueSize,
			MaxRetries:   a.Config.Persistence.MaxRetries,
			WriteTimeout: a.Config.Persistence.WriteTimeout,
		}, a.Logger)
		opts = service.Options{AlertStore: store, ThresholdStore: store, Writer: writer}
	}

	monitor := service.New(a.Config, opts, a.Logger)

	if err := monitor.Warmup(ctx); err != nil {
		if writer != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = writer.Close(flushCtx)
			cancel()
		}
		if closeStore != nil {
			closeStore()
		}
		return nil, nil, err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to register prometheus collectors")
	}

	cleanup := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := monitor.Close(flushCtx); err != nil {
			a.Logger.Warn().Err(err).Msg("alert writer did not drain before shutdown")
		}
		if closeStore != nil {
			closeStore()
		}
	}
	return monitor, cleanup, nil
}

// ShowOptions configure the alerts listing.
type ShowOptions struct {
	Tenant   string
	Scope    string
	Severity string
	Limit    int
}

// HistoryOptions configure the alert history listing.
type HistoryOptions struct {
	Tenant   string
	Scope    string
	DaysBack int
	Limit    int
}

// ResolveOptions configure single and batch resolution.
type ResolveOptions struct {
	AlertID string
	Tenant  string
	Scope   string
	Notes   string
	All     bool
}

// ExportOptions hold parameters for exporting alert history.
type ExportOptions struct {
	Tenant    string
	DaysBack  int
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// SimulateOptions drive the synthetic ingestion loop.
type SimulateOptions struct {
	Tenant      string
	Scope       string
	Interval    time.Duration
	Ticks       int
	SpikeAfter  int
	SpikeFactor float64
}
