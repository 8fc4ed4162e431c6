// Package worker drains the ingest queue into the attack feed.
//
// There is exactly one consumer: attack order on screen follows arrival
// order, so events are never fanned out.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/logger"
	"github.com/okian/attackmap/pkg/metrics"
)

// Event abstracts what the worker reads off the queue.
type Event = model.AttackEvent

// Sink receives every dequeued event, in order.
type Sink interface {
	Accept(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

// Accept calls f.
func (f SinkFunc) Accept(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam
	return f(ctx, event)
}

// Queue defines how the worker receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker forwards queued events to a sink.
type Worker interface {
	// Run blocks until ctx is cancelled, Shutdown is called or the queue
	// channel closes.
	Run(ctx context.Context)

	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	sink  Sink
	name  string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	// The dequeue goroutine must not outlive Run.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing event", logger.Error(err))
			}
		}
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// Shutdown gracefully stops the worker. Calling it more than once is safe.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) processEvent(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam
	if err := w.sink.Accept(ctx, event); err != nil {
		metrics.RecordErrorByComponent("worker", "sink")
		return fmt.Errorf("deliver attack %d -> %d: %w", event.Attacker.ID, event.Defender.ID, err)
	}
	return nil
}
