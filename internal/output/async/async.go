// Package async moves a slow side output, such as webhook alerting, off
// the replay loop.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/machwatch/internal/model"
	"github.com/crimson-sun/machwatch/internal/output"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("async: output closed")

const (
	defaultBufferSize   = 256
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the queue capacity. Default: 256.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithDrainTimeout bounds how long Close waits for queued outcomes.
// Default: 5s.
func WithDrainTimeout(d time.Duration) Option {
	return func(a *Async) { a.drainTimeout = d }
}

// WithOnError sets the callback for errors from the wrapped output.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull discards outcomes that arrive while the queue is full
// instead of blocking the writer.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// Async queues outcomes for a background goroutine that writes them to the
// wrapped output. Errors from the wrapped output go to the error callback,
// never back to the replay.
type Async struct {
	inner        output.Output
	queue        chan model.Outcome
	drained      chan struct{}
	errFunc      func(error)
	bufSize      int
	drainTimeout time.Duration
	dropOnFull   bool

	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	dropped atomic.Int64
}

// New starts the background writer for inner.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
		errFunc:      func(err error) { slog.Warn("async output write failed", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.queue = make(chan model.Outcome, a.bufSize)
	a.drained = make(chan struct{})
	go a.run()
	return a
}

// Write queues o. It blocks while the queue is full unless WithDropOnFull
// is set.
func (a *Async) Write(ctx context.Context, o model.Outcome) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	if a.dropOnFull {
		select {
		case a.queue <- o:
		default:
			if a.dropped.Add(1) == 1 {
				slog.Warn("async output queue full, dropping outcomes", "row", o.Row.Index)
			}
		}
		return nil
	}
	select {
	case a.queue <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped reports how many outcomes were discarded on a full queue.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Close stops accepting outcomes, waits up to the drain timeout for the
// queue to empty and closes the wrapped output.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	select {
	case <-a.drained:
	case <-time.After(a.drainTimeout):
		slog.Warn("async output drain timed out", "pending", len(a.queue))
	}
	if n := a.dropped.Load(); n > 0 {
		slog.Warn("async output dropped outcomes", "count", n)
	}
	return a.inner.Close()
}

func (a *Async) run() {
	defer close(a.drained)
	for o := range a.queue {
		if err := a.inner.Write(context.Background(), o); err != nil {
			a.errFunc(err)
		}
	}
}
