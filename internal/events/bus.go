package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher is the narrow interface components use to emit events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }

// EventBus distributes orchestrator events to filtered subscribers.
//
// All methods are safe for concurrent use. Publish never blocks on a slow
// subscriber: when a subscriber's buffer is full the event is dropped for that
// subscriber only and the drop is recorded.
type EventBus interface {
	Publisher

	// Subscribe registers a subscriber and returns its channel together with
	// a cleanup function that must be called to release it. A bufferSize of
	// zero selects the bus default.
	Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func())

	// Close closes every subscriber channel. Publish fails afterwards.
	Close() error
}

// MetricsRecorder receives counters about bus activity.
type MetricsRecorder interface {
	RecordEventPublished(eventType string, delivered int)
	RecordEventDropped(eventType string, subscriberID string)
}

// DefaultEventBus implements EventBus with one buffered channel per subscriber.
type DefaultEventBus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscription
	opts        busOptions
	closed      bool
	nextID      atomic.Uint64
}

type subscription struct {
	id       string
	ch       chan Event
	filter   Filter
	ctx      context.Context
	cancel   context.CancelFunc
	received atomic.Int64
	dropped  atomic.Int64
}

type busOptions struct {
	bufferSize int
	logger     *slog.Logger
	metrics    MetricsRecorder
}

// Option configures a DefaultEventBus.
type Option func(*busOptions)

// WithDefaultBufferSize sets the subscriber buffer used when Subscribe is
// called with bufferSize zero. Default: 100 events.
func WithDefaultBufferSize(size int) Option {
	return func(o *busOptions) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}

// WithLogger sets the logger used to report dropped events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *busOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the recorder notified about deliveries and drops.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(o *busOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// NewEventBus creates a DefaultEventBus.
//
//	bus := events.NewEventBus(events.WithDefaultBufferSize(500), events.WithLogger(logger))
//	defer bus.Close()
func NewEventBus(opts ...Option) *DefaultEventBus {
	o := busOptions{
		bufferSize: 100,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:    noopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &DefaultEventBus{
		subscribers: make(map[string]*subscription),
		opts:        o,
	}
}

// Publish delivers event to every subscriber whose filter matches. A zero
// Timestamp is set to the current time. It returns an error only when the bus
// is closed or ctx is cancelled mid-delivery.
func (eb *DefaultEventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return fmt.Errorf("event bus is closed")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	delivered := 0
	for _, sub := range eb.subscribers {
		if sub.ctx.Err() != nil {
			continue
		}
		if !sub.filter.Matches(event) {
			continue
		}

		select {
		case sub.ch <- event:
			delivered++
			sub.received.Add(1)
		case <-ctx.Done():
			return ctx.Err()
		default:
			sub.dropped.Add(1)
			eb.opts.metrics.RecordEventDropped(string(event.Type), sub.id)
			eb.opts.logger.Warn("dropped event for slow subscriber",
				"subscriber_id", sub.id,
				"event_type", event.Type,
				"formation_id", event.FormationID,
				"instance_id", event.InstanceID,
			)
		}
	}

	eb.opts.metrics.RecordEventPublished(string(event.Type), delivered)
	return nil
}

// Subscribe registers a filtered subscriber. Cancelling ctx stops delivery,
// but the channel stays open until the returned cleanup function runs.
//
//	ch, cleanup := bus.Subscribe(ctx, events.Filter{
//		Types:       []events.EventType{events.EventRolloutCompleted, events.EventRolloutAborted},
//		FormationID: formationID,
//	}, 0)
//	defer cleanup()
func (eb *DefaultEventBus) Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if bufferSize <= 0 {
		bufferSize = eb.opts.bufferSize
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		id:     fmt.Sprintf("sub-%d", eb.nextID.Add(1)),
		ch:     make(chan Event, bufferSize),
		filter: filter,
		ctx:    subCtx,
		cancel: cancel,
	}

	if eb.closed {
		// Subscribers of a closed bus get a closed channel.
		cancel()
		close(sub.ch)
		return sub.ch, func() {}
	}

	eb.subscribers[sub.id] = sub
	return sub.ch, func() { eb.unsubscribe(sub.id) }
}

// unsubscribe removes a subscription and closes its channel. Safe to call
// more than once.
func (eb *DefaultEventBus) unsubscribe(id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub, ok := eb.subscribers[id]
	if !ok {
		return
	}
	sub.cancel()
	close(sub.ch)
	delete(eb.subscribers, id)
}

// Close closes every subscriber channel and rejects further publishes.
// Close is idempotent.
func (eb *DefaultEventBus) Close() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return nil
	}
	eb.closed = true

	for id, sub := range eb.subscribers {
		sub.cancel()
		close(sub.ch)
		delete(eb.subscribers, id)
	}
	return nil
}

// SubscriberCount returns the number of live subscriptions.
func (eb *DefaultEventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

type noopMetrics struct{}

func (noopMetrics) RecordEventPublished(string, int)    {}
func (noopMetrics) RecordEventDropped(string, string) {}

var (
	_ EventBus  = (*DefaultEventBus)(nil)
	_ Publisher = Discard
)
