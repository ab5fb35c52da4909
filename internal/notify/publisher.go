package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/mlbb-topup-bot/pkg/metrics"
)

const (
	defaultQueueSize   = 256
	defaultWorkers     = 4
	deliveryTimeout    = 30 * time.Second
	droppedResultLabel = "dropped"
)

// DeliveryFunc delivers one event.
type DeliveryFunc func(ctx context.Context, ev Event)

// AsyncPublisher queues events in memory and delivers them from a fixed pool
// of workers. Events published while the queue is full are dropped.
type AsyncPublisher struct {
	queue   chan Event
	deliver DeliveryFunc
	workers int
	log     *slog.Logger

	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	closeOnce sync.Once
}

func NewAsyncPublisher(deliverer *Deliverer, queueSize, workers int, log *slog.Logger) *AsyncPublisher {
	return NewAsyncPublisherFunc(func(ctx context.Context, ev Event) {
		deliverer.Deliver(ctx, ev)
	}, queueSize, workers, log)
}

func NewAsyncPublisherFunc(deliver DeliveryFunc, queueSize, workers int, log *slog.Logger) *AsyncPublisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if log == nil {
		log = slog.Default()
	}

	return &AsyncPublisher{
		queue:   make(chan Event, queueSize),
		deliver: deliver,
		workers: workers,
		log:     log,
	}
}

// Start launches the workers. Deliveries use a context detached from ctx so
// in-flight sends finish during shutdown.
func (p *AsyncPublisher) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run(context.WithoutCancel(ctx))
		}
	})
}

func (p *AsyncPublisher) run(ctx context.Context) {
	defer p.wg.Done()

	for ev := range p.queue {
		deliverCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		p.deliver(deliverCtx, ev)
		cancel()
	}
}

func (p *AsyncPublisher) Publish(_ context.Context, ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		metrics.RecordNotification(string(ev.Type), droppedResultLabel)
		return
	}

	select {
	case p.queue <- ev:
	default:
		metrics.RecordNotification(string(ev.Type), droppedResultLabel)
		p.log.Warn("notification queue full, event dropped", slog.String("event", string(ev.Type)))
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
