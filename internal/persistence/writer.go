package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	writeAttempts = 3
	retryPause    = 250 * time.Millisecond
	drainBudget   = 5 * time.Second
)

// dbWrite is one deferred persistence action.
type dbWrite struct {
	label string
	apply func(context.Context) error
}

// WriterQueue funnels state writes onto a single goroutine so tuning
// traffic never meets SQLite on the protocol path. Failed writes are
// retried a few times, and Close drains the backlog before the
// database goes away.
type WriterQueue struct {
	logger  *slog.Logger
	pending chan dbWrite

	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

func NewWriterQueue(logger *slog.Logger, depth int) *WriterQueue {
	if depth <= 0 {
		depth = 256
	}

	return &WriterQueue{
		logger:  logger,
		pending: make(chan dbWrite, depth),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Enqueue schedules a write. A full queue sheds its oldest entry to
// make room: every write through here is a latest-state snapshot, so
// newer always supersedes older.
func (w *WriterQueue) Enqueue(label string, apply func(context.Context) error) {
	wr := dbWrite{label: label, apply: apply}
	for {
		select {
		case w.pending <- wr:
			return
		default:
		}
		select {
		case dropped := <-w.pending:
			w.logger.Warn("write queue full, shedding oldest", "dropped", dropped.label, "queued", wr.label)
		default:
		}
	}
}

// Start launches the queue worker. It runs until Close is called or
// ctx is cancelled; either way the backlog is drained before the
// worker exits.
func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-w.quit:
				w.drain()
				return
			case <-ctx.Done():
				w.drain()
				return
			case wr := <-w.pending:
				w.attempt(ctx, wr)
			}
		}
	}()
}

// Close stops the worker, waits for it, and then sweeps the queue one
// last time: a producer flushing during shutdown may enqueue after the
// worker already wound down on a cancelled context. Close must follow
// Start and is safe to call more than once.
func (w *WriterQueue) Close() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.done
	w.drain()
}

// drain applies everything still queued. It runs under its own
// deadline because the daemon context is usually already gone by the
// time drain is reached.
func (w *WriterQueue) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainBudget)
	defer cancel()
	for {
		select {
		case wr := <-w.pending:
			w.attempt(ctx, wr)
		default:
			return
		}
	}
}

func (w *WriterQueue) attempt(ctx context.Context, wr dbWrite) {
	for try := 1; ; try++ {
		err := wr.apply(ctx)
		if err == nil {
			return
		}
		w.logger.Error("persist failed", "write", wr.label, "try", try, "error", err)
		if try == writeAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(try) * retryPause):
		}
	}
}
