// Package writer batches parsed rows per destination table and upserts
// them through the db driver.
package writer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keibalab/racedata-ingester/internal/db"
	"github.com/keibalab/racedata-ingester/internal/jvdata"
	"github.com/keibalab/racedata-ingester/internal/metrics"
	"github.com/keibalab/racedata-ingester/internal/schema"
)

const defaultBatchCap = 1000

type Config struct {
	// BatchCap is the per-table row count that triggers a flush.
	BatchCap int

	// Reconnect backoff after a dead connection. Base doubles up to Max;
	// the connection is declared dead after Attempts failures.
	ReconnectBase     time.Duration
	ReconnectMax      time.Duration
	ReconnectAttempts int
}

func (c Config) withDefaults() Config {
	if c.BatchCap <= 0 {
		c.BatchCap = defaultBatchCap
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = 5
	}
	return c
}

// Writer accumulates rows per table and flushes each table in one
// atomic batch. A failed batch degrades to per-row writes so one bad
// row cannot block the rest of the batch.
type Writer struct {
	drv    db.Driver
	cat    *schema.Catalogue
	cfg    Config
	logger *zap.Logger

	onFlush func()

	mu       sync.Mutex
	buffers  map[string][][]any
	imported int64
	failed   int64
	batches  int64
}

func New(drv db.Driver, cat *schema.Catalogue, cfg Config, logger *zap.Logger) *Writer {
	return &Writer{
		drv:     drv,
		cat:     cat,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		buffers: make(map[string][][]any),
	}
}

// OnFlush registers a callback invoked after every successful batch
// write. Set before first use; not synchronised.
func (w *Writer) OnFlush(fn func()) { w.onFlush = fn }

// Add routes one parsed record to its destination table and buffers the
// row, reporting whether the row was accepted. Rows with a null
// primary-key column are rejected and counted as failed; they never
// reach the database.
func (w *Writer) Add(ctx context.Context, p schema.Path, rec *jvdata.ParsedRecord) (bool, error) {
	table, err := w.cat.Route(p, rec.Kind, rec.Group)
	if err != nil {
		return false, err
	}
	def, ok := w.cat.Schema(table)
	if !ok {
		return false, fmt.Errorf("writer: no schema for table %s", table)
	}

	row := make([]any, len(def.Columns))
	for i, col := range def.Columns {
		row[i] = rec.Values[col.Name].Any()
	}
	for _, k := range def.Key {
		if rec.Values[k].IsNull() {
			w.mu.Lock()
			w.failed++
			w.mu.Unlock()
			metrics.RecordsFailedTotal.WithLabelValues(table, "missing_key").Inc()
			w.logger.Warn("row rejected: null key column",
				zap.String("table", table),
				zap.String("column", k))
			return false, nil
		}
	}

	w.mu.Lock()
	w.buffers[table] = append(w.buffers[table], row)
	full := len(w.buffers[table]) >= w.cfg.BatchCap
	w.mu.Unlock()

	if full {
		return true, w.flushTable(ctx, table, def)
	}
	return true, nil
}

// Flush drains every buffered table. Tables are flushed in name order
// so retries after a partial failure are deterministic.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	tables := make([]string, 0, len(w.buffers))
	for t, rows := range w.buffers {
		if len(rows) > 0 {
			tables = append(tables, t)
		}
	}
	w.mu.Unlock()
	sort.Strings(tables)

	for _, t := range tables {
		def, ok := w.cat.Schema(t)
		if !ok {
			return fmt.Errorf("writer: no schema for table %s", t)
		}
		if err := w.flushTable(ctx, t, def); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) flushTable(ctx context.Context, table string, def *schema.TableDef) error {
	w.mu.Lock()
	rows := w.buffers[table]
	w.buffers[table] = nil
	w.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}

	cols := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		cols[i] = c.Name
	}
	sql := w.drv.UpsertTemplate(table, cols, def.Key)

	start := time.Now()
	err := w.drv.BulkExec(ctx, sql, rows)
	if err == nil {
		w.recordImported(table, len(rows), start)
		return nil
	}

	w.logger.Warn("batch flush failed, retrying per row",
		zap.String("table", table),
		zap.Int("rows", len(rows)),
		zap.Error(err))

	if pingErr := w.drv.Ping(ctx); pingErr != nil {
		if err := w.reconnect(ctx); err != nil {
			// Connection never came back; put the rows back so the
			// caller can retry the flush later.
			w.mu.Lock()
			w.buffers[table] = append(rows, w.buffers[table]...)
			w.mu.Unlock()
			return err
		}
		if err := w.drv.BulkExec(ctx, sql, rows); err == nil {
			w.recordImported(table, len(rows), start)
			return nil
		}
	}

	ok := 0
	for _, row := range rows {
		if rowErr := w.drv.Exec(ctx, sql, row...); rowErr != nil {
			w.mu.Lock()
			w.failed++
			w.mu.Unlock()
			metrics.RecordsFailedTotal.WithLabelValues(table, "row_write").Inc()
			w.logger.Error("row write failed",
				zap.String("table", table),
				zap.Error(rowErr))
			continue
		}
		ok++
	}
	if ok > 0 {
		w.recordImported(table, ok, start)
	}
	return nil
}

func (w *Writer) recordImported(table string, n int, start time.Time) {
	w.mu.Lock()
	w.imported += int64(n)
	w.batches++
	w.mu.Unlock()
	metrics.RecordsImportedTotal.WithLabelValues(table).Add(float64(n))
	metrics.BatchSize.WithLabelValues(table).Observe(float64(n))
	metrics.DBWriteDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
	if w.onFlush != nil {
		w.onFlush()
	}
}

func (w *Writer) reconnect(ctx context.Context) error {
	delay := w.cfg.ReconnectBase
	for attempt := 1; ; attempt++ {
		w.logger.Info("reconnecting to database",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay))
		err := w.drv.Connect(ctx)
		if err == nil {
			return nil
		}
		if attempt >= w.cfg.ReconnectAttempts {
			return fmt.Errorf("writer: database unreachable after %d reconnect attempts: %w", attempt, err)
		}
		w.logger.Warn("reconnect failed", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > w.cfg.ReconnectMax {
			delay = w.cfg.ReconnectMax
		}
	}
}

// Stats returns rows written, rows rejected and batches flushed since
// construction.
func (w *Writer) Stats() (imported, failed, batches int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.imported, w.failed, w.batches
}
