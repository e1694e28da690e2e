package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Dispatcher hands events to a background worker without blocking the
// request path. When the inbox is full the event is dropped and counted;
// auth latency is never held hostage to a slow audit sink.
type Dispatcher struct {
	inbox   chan Event
	dropped atomic.Uint64
}

func NewDispatcher(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{inbox: make(chan Event, buffer)}
}

// Record enqueues an event for the worker, dropping on a full inbox.
func (d *Dispatcher) Record(_ context.Context, event Event) {
	select {
	case d.inbox <- event:
	default:
		d.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the inbox was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Worker consumes dispatched events and persists them through a Publisher.
type Worker struct {
	publisher  *Publisher
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewWorker(publisher *Publisher, dispatcher *Dispatcher, logger *slog.Logger) *Worker {
	return &Worker{publisher: publisher, dispatcher: dispatcher, logger: logger}
}

// Run drains the dispatcher until ctx is cancelled. A failed append is
// logged and skipped; the worker must not die because one write failed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.dispatcher.inbox:
			if err := w.publisher.Emit(ctx, event); err != nil && w.logger != nil {
				w.logger.ErrorContext(ctx, "audit append failed", "action", event.Action, "error", err)
			}
		}
	}
}
