// Package queue provides the bounded multi-producer/single-consumer buffer
// between the protocol collectors and the forwarder. A full queue blocks the
// producing collector (backpressure) rather than dropping events.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/HerbHall/netsentry/pkg/models"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue: closed")

// Queue is a bounded FIFO of normalized events. Safe for concurrent
// enqueue from any number of collectors; Dequeue is single-consumer.
type Queue struct {
	ch     chan models.Event
	closed chan struct{}
}

// New creates a queue holding at most capacity events. Capacity must be at
// least 1; config validation enforces this upstream.
func New(capacity int) *Queue {
	return &Queue{
		ch:     make(chan models.Event, capacity),
		closed: make(chan struct{}),
	}
}

// Enqueue adds an event, blocking while the queue is full. Returns ctx.Err()
// on cancellation and ErrClosed after Close.
func (q *Queue) Enqueue(ctx context.Context, ev models.Event) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- ev:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the oldest event, waiting up to timeout. The second return
// is false when the wait expired or the queue shut down empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (models.Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-q.ch:
		return ev, true
	case <-timer.C:
		return models.Event{}, false
	case <-ctx.Done():
		// Drain anything already buffered before giving up.
		select {
		case ev := <-q.ch:
			return ev, true
		default:
			return models.Event{}, false
		}
	}
}

// TryDequeue removes the oldest event without waiting.
func (q *Queue) TryDequeue() (models.Event, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	default:
		return models.Event{}, false
	}
}

// Depth returns the number of buffered events.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Close rejects further enqueues. Buffered events remain dequeueable.
func (q *Queue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}
