// Package outbox is an unbounded per-connection message queue. Producers
// never block; one consumer drains it at its own pace.
package outbox

import (
	"context"
	"errors"
	"sync"

	list "github.com/bahlo/generic-list-go"
)

var ErrClosed = errors.New("outbox closed")

// Queue holds messages of type T in FIFO order.
type Queue[T any] struct {
	mu     sync.Mutex
	items  *list.List[T]
	closed bool
	ready  chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{items: list.New[T](), ready: make(chan struct{}, 1)}
}

// Send enqueues msg. It fails only after Close.
func (q *Queue[T]) Send(msg T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items.PushBack(msg)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Close stops accepting messages. Already queued messages can still be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of queued messages.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Next blocks until a message is available, the queue is closed and empty
// (returns ErrClosed), or ctx is done.
func (q *Queue[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if front := q.items.Front(); front != nil {
			msg := q.items.Remove(front)
			q.mu.Unlock()
			return msg, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return zero, ErrClosed
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
