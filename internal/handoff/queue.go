// Package handoff provides the fixed-capacity FIFO queues that connect
// pipeline stages. Sends never block the producer: a full queue fails
// immediately and the caller keeps ownership of the item, so it can be
// disposed according to its buffer kind before the drop is counted.
package handoff

import (
	"errors"
	"time"
)

var (
	// ErrFull is returned by TrySend when the queue is at capacity. The
	// item was not enqueued and remains owned by the caller.
	ErrFull = errors.New("handoff: queue full")

	// ErrTimeout is returned by Recv and Send when the timeout elapses.
	ErrTimeout = errors.New("handoff: timeout")
)

// Queue is a bounded, insertion-ordered hand-off channel between two
// stages. Safe for multiple producers and a single consumer.
type Queue[T any] struct {
	ch chan T
}

// New creates a queue with the given fixed capacity.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("handoff: capacity must be positive")
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TrySend enqueues item without blocking. On ErrFull the caller still owns
// the item and is responsible for its disposal.
func (q *Queue[T]) TrySend(item T) error {
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrFull
	}
}

// Send enqueues item, waiting up to timeout for a free slot.
func (q *Queue[T]) Send(item T, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.ch <- item:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}

// Recv dequeues the oldest item, waiting up to timeout.
func (q *Queue[T]) Recv(timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-q.ch:
		return item, nil
	case <-timer.C:
		var zero T
		return zero, ErrTimeout
	}
}

// TryRecv dequeues the oldest item without blocking.
func (q *Queue[T]) TryRecv() (T, bool) {
	select {
	case item := <-q.ch:
		return item, true
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }
