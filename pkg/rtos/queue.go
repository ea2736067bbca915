package rtos

import (
	"context"
	"fmt"
	"time"
)

// Queue is a fixed-capacity FIFO. Values are copied in and out,
// so T should be a small value type.
type Queue[T any] struct {
	name string
	ch   chan T
}

// NewQueue creates a Queue with the given capacity.
func NewQueue[T any](name string, capacity int) (*Queue[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("queue %s capacity %d: %w", name, capacity, ErrResource)
	}
	return &Queue[T]{name: name, ch: make(chan T, capacity)}, nil
}

// Name implements framework.Named.
func (q *Queue[T]) Name() string {
	return q.name
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// TrySend enqueues v without blocking, false if the queue is full.
func (q *Queue[T]) TrySend(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// TrySendFromISR is TrySend for interrupt context.
func (q *Queue[T]) TrySendFromISR(v T) bool {
	return q.TrySend(v)
}

// Send blocks until v is enqueued.
func (q *Queue[T]) Send(ctx context.Context, v T, timeout time.Duration) error {
	if q.TrySend(v) {
		return nil
	}
	if timeout == NoWait {
		return ErrTimeout
	}
	expired, stop := deadline(timeout)
	defer stop()
	select {
	case q.ch <- v:
		return nil
	case <-expired:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until the oldest value is dequeued.
func (q *Queue[T]) Receive(ctx context.Context, timeout time.Duration) (v T, err error) {
	select {
	case v = <-q.ch:
		return
	default:
	}
	if timeout == NoWait {
		err = ErrTimeout
		return
	}
	expired, stop := deadline(timeout)
	defer stop()
	select {
	case v = <-q.ch:
	case <-expired:
		err = ErrTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}
	return
}
