package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes buffered log output during shutdown.
type Closer interface {
	Close()
}

// nopCloser is the Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// asyncCore is the buffering state shared by every handler derived from one
// NewAsyncHandler call. WithAttrs and WithGroup derivatives feed the same
// channel, so a single worker pool and drop counter cover the whole tree.
type asyncCore struct {
	ch      chan slog.Record
	wg      sync.WaitGroup
	dropped atomic.Int64
	closed  sync.Once
}

// AsyncHandler buffers records on a channel and writes them from background
// workers. Handle never blocks: a full buffer drops the record and counts
// it, which keeps logging off the script execution path between yields.
type AsyncHandler struct {
	inner slog.Handler
	core  *asyncCore
}

// NewAsyncHandler starts workers goroutines draining a buffer of bufSize
// records into inner.
func NewAsyncHandler(inner slog.Handler, bufSize, workers int) *AsyncHandler {
	h := &AsyncHandler{
		inner: inner,
		core:  &asyncCore{ch: make(chan slog.Record, bufSize)},
	}
	for range workers {
		h.core.wg.Add(1)
		go h.consume()
	}
	return h
}

func (h *AsyncHandler) consume() {
	defer h.core.wg.Done()
	for rec := range h.core.ch {
		_ = h.inner.Handle(context.Background(), rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record without blocking. A full buffer drops it.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.core.ch <- rec:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

// WithAttrs derives a handler writing through the same buffer.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), core: h.core}
}

// WithGroup derives a handler writing through the same buffer.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), core: h.core}
}

// Dropped returns how many records were discarded because the buffer was
// full.
func (h *AsyncHandler) Dropped() int64 {
	return h.core.dropped.Load()
}

// Close drains the buffer and stops the workers. Records lost to
// backpressure leave one synchronous summary record behind, so silent loss
// never stays silent. Safe to call more than once.
func (h *AsyncHandler) Close() {
	h.core.closed.Do(func() {
		close(h.core.ch)
		h.core.wg.Wait()
		if n := h.core.dropped.Load(); n > 0 {
			rec := slog.NewRecord(time.Now(), slog.LevelWarn, "log records dropped under backpressure", 0)
			rec.AddAttrs(slog.Int64("dropped", n))
			_ = h.inner.Handle(context.Background(), rec)
		}
	})
}
