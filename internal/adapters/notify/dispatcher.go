package notify

import (
	"context"

	"github.com/okian/headhunt/internal/adapters/mq/queue"
	"github.com/okian/headhunt/internal/adapters/mq/worker"
	"github.com/okian/headhunt/internal/domain/dedupe"
	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/pkg/logger"
	"github.com/okian/headhunt/pkg/metrics"
)

// Dispatcher queues notifications and delivers them from a worker pool.
// Notify never blocks: when the queue is full the notification is dropped.
// Each proposal and status pair is delivered at most once.
type Dispatcher struct {
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	deduper dedupe.Deduper
	logger  logger.Logger

	queueSize   int
	workerCount int
	dedupeSize  int
}

// NewDispatcher creates a dispatcher delivering to sink.
func NewDispatcher(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queueSize:   1024,
		workerCount: 4,
		dedupeSize:  10000,
		logger:      logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = queue.NewInMemoryQueue(queue.WithCapacity(d.queueSize))
	d.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(d.dedupeSize))
	d.pool = worker.NewPool(d.workerCount, d.queue, sink,
		worker.WithFailureHandler(func(ctx context.Context, n model.Notification, _ error) {
			d.deduper.Unrecord(ctx, n.Key())
		}))
	return d
}

// Start runs the workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.pool.Start(ctx)
}

// Notify queues n. It returns false when n was dropped.
func (d *Dispatcher) Notify(ctx context.Context, n model.Notification) bool {
	key := n.Key()
	if d.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordNotificationDuplicate()
		d.logger.Debug(ctx, "duplicate notification suppressed", logger.String("key", key))
		return true
	}
	if !d.queue.Enqueue(ctx, n) {
		d.deduper.Unrecord(ctx, key)
		return false
	}
	return true
}

// Pending returns the number of queued notifications.
func (d *Dispatcher) Pending() int { return d.queue.Len() }

// Delivered returns the number of notifications delivered so far.
func (d *Dispatcher) Delivered() int64 { return d.pool.Delivered() }

// Shutdown stops accepting notifications and drains the queue.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	return d.pool.Shutdown(ctx)
}
