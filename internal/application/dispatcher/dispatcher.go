package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/event"
)

// ErrClosed is returned by Dispatch after Close
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher routes chat events to the handlers subscribed to their type
type Dispatcher interface {
	// Subscribe adds a named handler; handlers of a type run in subscription order
	Subscribe(eventType event.Type, name string, handler Handler)

	// Dispatch runs the handlers inline and stops at the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs each handler on its own goroutine and returns at once.
	// Handler errors are logged.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Handlers returns the names subscribed to an event type
	Handlers(eventType event.Type) []string

	// Close refuses new events and waits for running async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type subscription struct {
	name    string
	handler Handler
}

type eventDispatcher struct {
	mu     sync.RWMutex
	routes map[event.Type][]subscription
	logger Logger

	inflight sync.WaitGroup
	slots    chan struct{}
	closed   atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithMaxConcurrency bounds the number of async handlers running at once.
// Zero or less leaves async dispatch unbounded.
func WithMaxConcurrency(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.slots = make(chan struct{}, n)
		}
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		routes: make(map[event.Type][]subscription),
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = nopLogger{}
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.routes[eventType] = append(d.routes[eventType], subscription{name: name, handler: handler})
	d.logger.Info("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	for _, sub := range d.route(evt) {
		if err := d.run(ctx, evt, sub); err != nil {
			return fmt.Errorf("handler %s failed: %w", sub.name, err)
		}
	}
	return nil
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logger.Error("Event dropped, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		return
	}

	for _, sub := range d.route(evt) {
		d.inflight.Add(1)
		go func(sub subscription) {
			defer d.inflight.Done()
			if !d.acquire(ctx) {
				d.logger.Error("Event dropped, context done",
					"event_type", evt.Type, "event_id", evt.ID, "handler_name", sub.name)
				return
			}
			defer d.release()
			// errors are already logged by run
			_ = d.run(ctx, evt, sub)
		}(sub)
	}
}

func (d *eventDispatcher) Handlers(eventType event.Type) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.routes[eventType]))
	for _, sub := range d.routes[eventType] {
		names = append(names, sub.name)
	}
	return names
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	d.inflight.Wait()
	d.logger.Info("Dispatcher closed")
	return nil
}

// route returns a snapshot so handlers may subscribe while events are in flight
func (d *eventDispatcher) route(evt *event.Event) []subscription {
	d.mu.RLock()
	subs := append([]subscription(nil), d.routes[evt.Type]...)
	d.mu.RUnlock()

	if len(subs) == 0 {
		d.logger.Info("No handler for event", "event_type", evt.Type, "event_id", evt.ID)
	}
	return subs
}

func (d *eventDispatcher) acquire(ctx context.Context) bool {
	if d.slots == nil {
		return true
	}
	select {
	case d.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *eventDispatcher) release() {
	if d.slots != nil {
		<-d.slots
	}
}

// run recovers handler panics as errors and logs every failure
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			d.logger.Error("Handler failed",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"correlation_id", evt.CorrelationID,
				"handler_name", sub.name,
				"error", err,
			)
		}
	}()
	return sub.handler(ctx, evt)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
