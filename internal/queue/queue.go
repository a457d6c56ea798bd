// Package queue provides the concurrency-safe progress queue shared by the
// concurrent engine's workers. Multi-producer, single-consumer: every
// worker pushes progress items, one coordinator drains them.
// This package is internal and should not be imported by external projects.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("queue is closed")

// Queue is an MPSC queue backed by a buffered channel, with a growable
// overflow list so producers never block the engine's event loop.
type Queue[T any] struct {
	ch     chan T
	mu     sync.Mutex
	extra  []T
	closed atomic.Bool

	// Metrics
	sends    atomic.Int64
	receives atomic.Int64
	spills   atomic.Int64
}

// New creates a queue with the given channel buffer size.
func New[T any](size int) *Queue[T] {
	if size <= 0 {
		size = 64
	}
	return &Queue[T]{ch: make(chan T, size)}
}

// Send enqueues a value. It never blocks: when the channel buffer is full
// the value spills to the overflow list. Returns ErrClosed after Close and
// the context error when ctx is already done.
func (q *Queue[T]) Send(ctx context.Context, v T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.closed.Load() {
		return ErrClosed
	}
	q.sends.Add(1)
	select {
	case q.ch <- v:
	default:
		q.mu.Lock()
		q.extra = append(q.extra, v)
		q.mu.Unlock()
		q.spills.Add(1)
	}
	return nil
}

// TryReceive attempts a non-blocking receive, draining the channel buffer
// before the overflow list.
func (q *Queue[T]) TryReceive() (T, bool) {
	select {
	case v := <-q.ch:
		q.receives.Add(1)
		return v, true
	default:
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.extra) > 0 {
		v := q.extra[0]
		q.extra = q.extra[1:]
		q.receives.Add(1)
		return v, true
	}
	var zero T
	return zero, false
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ch) + len(q.extra)
}

// Close marks the queue closed for producers. Queued items remain
// receivable so the coordinator can drain stragglers after the run ends.
func (q *Queue[T]) Close() {
	q.closed.Store(true)
}

// Stats returns cumulative send/receive/spill counts.
func (q *Queue[T]) Stats() (sends, receives, spills int64) {
	return q.sends.Load(), q.receives.Load(), q.spills.Load()
}
