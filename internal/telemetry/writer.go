package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrWriterStopped is returned by Emit after Stop.
var ErrWriterStopped = errors.New("telemetry writer stopped")

// BatchSender is the subset of *pgxpool.Pool used by Writer.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int           // Flush when this many events are pending
	FlushInterval time.Duration // Flush at least this often
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
	}
}

// WriterStats contains writer counters.
type WriterStats struct {
	Inserts int64 `json:"inserts"`
	Flushes int64 `json:"flushes"`
	Errors  int64 `json:"errors"`
	Dropped int64 `json:"dropped"`
}

// Writer batches events into the telemetry_events table.
type Writer struct {
	cfg    WriterConfig
	db     BatchSender
	logger *slog.Logger

	batch   []eventRow
	batchMu sync.Mutex
	stopped bool
	stats   WriterStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// eventRow is the row shape of telemetry_events.
type eventRow struct {
	ID         string
	Name       string
	EmittedAt  time.Time
	Result     string
	Attributes []byte
}

// NewWriter creates a Writer.
func NewWriter(cfg WriterConfig, db BatchSender, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger,
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Start begins the periodic flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("telemetry writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop halts the flush loop and writes whatever is pending.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping telemetry writer")

	w.batchMu.Lock()
	w.stopped = true
	w.batchMu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("telemetry writer stop timed out")
	}

	return w.flush(ctx)
}

// Emit queues ev for the next flush.
func (w *Writer) Emit(ctx context.Context, ev Event) error {
	row, err := w.transform(ev)
	if err != nil {
		return err
	}

	w.batchMu.Lock()
	if w.stopped {
		w.stats.Dropped++
		w.batchMu.Unlock()
		return ErrWriterStopped
	}
	w.batch = append(w.batch, row)
	full := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if full {
		return w.flush(ctx)
	}
	return nil
}

// Stats returns current counters.
func (w *Writer) Stats() WriterStats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.flush(w.ctx); err != nil {
				w.logger.Warn("periodic telemetry flush failed", "error", err)
			}
		}
	}
}

func (w *Writer) transform(ev Event) (eventRow, error) {
	attrs, err := json.Marshal(ev.Attributes)
	if err != nil {
		return eventRow{}, fmt.Errorf("marshal attributes for %s: %w", ev.Name, err)
	}
	return eventRow{
		ID:         ev.ID.String(),
		Name:       ev.Name,
		EmittedAt:  ev.Time.UTC(),
		Result:     string(ev.Result),
		Attributes: attrs,
	}, nil
}

// flush takes ownership of the pending batch and inserts it.
func (w *Writer) flush(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}
	rows := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	err := w.batchInsert(ctx, rows)

	w.batchMu.Lock()
	if err != nil {
		w.stats.Errors++
	} else {
		w.stats.Inserts += int64(len(rows))
		w.stats.Flushes++
	}
	w.batchMu.Unlock()

	if err != nil {
		w.logger.Error("telemetry batch insert failed", "error", err, "count", len(rows))
		return err
	}

	w.logger.Debug("flushed telemetry",
		"count", len(rows),
		"duration", time.Since(start),
	)
	return nil
}

func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) error {
	if w.db == nil {
		return errors.New("telemetry writer has no database")
	}
	// Stop may flush after the loop context is gone.
	ctx = context.WithoutCancel(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO telemetry_events (id, name, emitted_at, result, attributes)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Name, r.EmittedAt, r.Result, r.Attributes)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert telemetry event: %w", err)
		}
	}
	return nil
}
