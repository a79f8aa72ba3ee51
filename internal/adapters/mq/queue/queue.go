// Package queue holds notifications between a transition and its delivery.
package queue

import (
	"context"
	"sync"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds n to the queue. It returns false when the queue is full
	// or closed; it never blocks.
	Enqueue(ctx context.Context, n model.Notification) bool

	// Dequeue returns the channel notifications are delivered on. The
	// channel is closed when the queue is closed and drained.
	Dequeue() <-chan model.Notification

	Len() int

	// Close stops accepting notifications.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	items    chan model.Notification
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan model.Notification, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, n model.Notification) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueDropped("closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueDropped("context_cancelled")
		return false
	}

	select {
	case q.items <- n:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.items))
		return true
	default:
		metrics.RecordQueueDropped("queue_full")
		return false
	}
}

func (q *InMemoryQueue) Dequeue() <-chan model.Notification {
	return q.items
}

func (q *InMemoryQueue) Len() int {
	n := len(q.items)
	metrics.UpdateQueueSize(n)
	return n
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
