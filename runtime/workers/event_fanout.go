package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// EventFanout broadcasts domain events to multiple in-process consumers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries. EventFanout is not a message broker.
// Events are published without blocking: when the queue is full they are dropped.
//
// It is intended for side effects (presence persistence, search indexing),
// never for core domain logic.
type EventFanout struct {
	log         *slog.Logger
	metrics     *observability.Metrics
	events      chan event.DomainEvent
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, metrics *observability.Metrics, capacity int, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		metrics:     metrics,
		events:      make(chan event.DomainEvent, capacity),
		sinkTimeout: sinkTimeout,
	}
}

// Add registers sinks. It must be called before Run.
func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

// Publish enqueues e without blocking the caller.
func (w *EventFanout) Publish(e event.DomainEvent) {
	select {
	case w.events <- e:
	default:
		w.log.Warn("Fanout queue is full, event dropped", "type", e.Type())
		w.metrics.EventDropped(string(e.Type()))
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout hands evt to every sink concurrently, each one bounded by the sink timeout.
// It returns once all sinks are done so that a sink sees events in publication order.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	var wg sync.WaitGroup
	for _, sink := range w.sinks {
		wg.Add(1)
		go func(sink contract.EventSink) {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()
			if err := sink.Consume(sinkCtx, evt); err != nil {
				w.log.Warn("Sink failed to consume event", "type", evt.Type(), "error", err)
			}
		}(sink)
	}
	wg.Wait()
}
