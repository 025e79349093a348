package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"perf-anomaly-alerts/internal/alerts"
)

// AsyncWriter dispatches alert rows to the database off the ingestion path.
// Writes are fire-and-forget with bounded retries; when the queue is full the
// write is dropped rather than blocking the caller.
type AsyncWriter struct {
	store        AlertStore
	queue        chan alerts.Alert
	maxRetries   int
	writeTimeout time.Duration
	logger       zerolog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// AsyncWriterOptions tune queue and retry behaviour.
type AsyncWriterOptions struct {
	QueueSize    int
	MaxRetries   int
	WriteTimeout time.Duration
}

// NewAsyncWriter starts the background drain goroutine.
func NewAsyncWriter(store AlertStore, opts AsyncWriterOptions, logger zerolog.Logger) *AsyncWriter {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	w := &AsyncWriter{
		store:        store,
		queue:        make(chan alerts.Alert, opts.QueueSize),
		maxRetries:   opts.MaxRetries,
		writeTimeout: opts.WriteTimeout,
		logger:       logger.With().Str("component", "alert_writer").Logger(),
	}

	w.wg.Add(1)
	go w.drain()
	return w
}

// Enqueue hands an alert snapshot to the writer. It never blocks; a full
// queue drops the write and logs it.
func (w *AsyncWriter) Enqueue(alert alerts.Alert) {
	select {
	case w.queue <- alert:
	default:
		w.logger.Warn().
			Str("alert_id", alert.ID).
			Str("tenant", alert.TenantID).
			Msg("persistence queue full; dropping alert write")
	}
}

// Close stops accepting writes and drains the queue, abandoning the drain
// once ctx expires.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.queue)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AsyncWriter) drain() {
	defer w.wg.Done()

	for alert := range w.queue {
		w.persist(alert)
	}
}

func (w *AsyncWriter) persist(alert alerts.Alert) {
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
		err := w.store.UpsertAlert(ctx, alert)
		cancel()
		if err == nil {
			return
		}

		w.logger.Error().Err(err).
			Str("alert_id", alert.ID).
			Int("attempt", attempt+1).
			Msg("alert write failed")

		if attempt < w.maxRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
}
