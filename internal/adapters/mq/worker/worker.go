// Package worker delivers queued notifications to a sink.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/pkg/logger"
	"github.com/okian/headhunt/pkg/metrics"
)

const (
	defaultWorkerCount    = 4
	defaultSendTimeout    = 5 * time.Second
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Sink delivers one notification.
type Sink interface {
	Send(ctx context.Context, n model.Notification) error
}

// Queue is where workers read notifications from.
type Queue interface {
	Dequeue() <-chan model.Notification
}

// FailureHandler is called after a delivery fails.
type FailureHandler func(ctx context.Context, n model.Notification, err error)

// InMemoryWorker drains the queue into the sink until the queue closes.
type InMemoryWorker struct {
	queue       Queue
	sink        Sink
	name        string
	sendTimeout time.Duration
	onFailure   FailureHandler
	delivered   *atomic.Int64

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(queue Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       queue,
		sink:        sink,
		name:        "worker",
		sendTimeout: defaultSendTimeout,
		delivered:   &atomic.Int64{},
		done:        make(chan struct{}),
		logger:      logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run delivers notifications until the queue is closed and drained or ctx
// is cancelled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-items:
			if !ok {
				return
			}
			if err := w.deliver(ctx, n); err != nil {
				w.logger.Error(ctx, "notification delivery failed",
					logger.String("proposal_id", n.ProposalID),
					logger.String("status", string(n.NewStatus)),
					logger.Error(err))
				if w.onFailure != nil {
					w.onFailure(ctx, n, err)
				}
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) deliver(ctx context.Context, n model.Notification) error {
	start := time.Now()
	defer func() {
		metrics.RecordDeliveryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()
	if err := w.sink.Send(sendCtx, n); err != nil {
		metrics.RecordNotificationFailed()
		metrics.RecordErrorByComponent("worker", "delivery_failed")
		return fmt.Errorf("send notification %s: %w", n.Key(), err)
	}
	metrics.RecordNotificationDelivered()
	w.delivered.Add(1)
	return nil
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	delivered atomic.Int64

	shutdown chan struct{}
	logger   logger.Logger
}

// NewPool creates workerCount workers; workerCount < 1 uses the default.
func NewPool(workerCount int, queue Queue, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(queue, sink, wopts...)
		w.delivered = &p.delivered
		p.workers[i] = w
	}
	metrics.UpdateWorkerActiveCount(workerCount)
	return p
}

// Start runs every worker and the throughput reporter.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.reportThroughput(ctx)
}

// Delivered returns the number of successful deliveries so far.
func (p *Pool) Delivered() int64 { return p.delivered.Load() }

func (p *Pool) reportThroughput(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	last, lastAt := p.delivered.Load(), time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case now := <-ticker.C:
			cur := p.delivered.Load()
			if secs := now.Sub(lastAt).Seconds(); secs > 0 {
				metrics.UpdateWorkerMessagesPerSecond(float64(cur-last) / secs)
			}
			last, lastAt = cur, now
		}
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
