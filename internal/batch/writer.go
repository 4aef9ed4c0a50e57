// Package batch accumulates rows per target table and flushes them in
// bounded multi-row writes, keeping peak memory and database round trips
// independent of archive size.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

// FlushFunc persists one batch of rows.
type FlushFunc[T any] func(ctx context.Context, rows []T) error

// Writer buffers rows for one table. Access is serialized; there is a
// single writer at a time per table buffer.
type Writer[T any] struct {
	mu    sync.Mutex
	table string
	size  int
	rows  []T
	flush FlushFunc[T]
	log   *slog.Logger

	flushed       int
	failedBatches int
}

// NewWriter creates a writer that flushes every size rows.
func NewWriter[T any](table string, size int, flush FlushFunc[T]) *Writer[T] {
	if size < 1 {
		size = 1
	}
	return &Writer[T]{
		table: table,
		size:  size,
		rows:  make([]T, 0, size),
		flush: flush,
		log:   slog.Default().With("component", "batch-writer", "table", table),
	}
}

// Add buffers one row, flushing if the batch size is reached. A failed
// flush is logged and counted but does not propagate: one bad batch must
// not abort the whole archive.
func (w *Writer[T]) Add(ctx context.Context, row T) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rows = append(w.rows, row)
	if len(w.rows) >= w.size {
		w.flushLocked(ctx)
	}
}

// Flush writes any buffered rows. Call at end of device or archive
// processing for the final partial batch.
func (w *Writer[T]) Flush(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked(ctx)
}

func (w *Writer[T]) flushLocked(ctx context.Context) {
	if len(w.rows) == 0 {
		return
	}
	rows := w.rows
	w.rows = make([]T, 0, w.size)

	err := retry.Do(
		func() error { return w.flush(ctx, rows) },
		retry.Attempts(2),
		retry.Delay(100*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		w.failedBatches++
		w.log.Error("batch flush failed, continuing with next batch",
			"rows", len(rows), "error", err)
		return
	}
	w.flushed += len(rows)
}

// Flushed returns the number of rows successfully written.
func (w *Writer[T]) Flushed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushed
}

// FailedBatches returns the number of batches that could not be written.
func (w *Writer[T]) FailedBatches() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failedBatches
}

// Pending returns the number of rows currently buffered.
func (w *Writer[T]) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}
