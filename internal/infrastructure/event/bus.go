package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
)

// ErrBusStopped is returned by Publish once the bus is stopped.
var ErrBusStopped = errors.New("event: bus stopped")

// BusConfig sizes the dispatch pool.
type BusConfig struct {
	Workers   int
	QueueSize int
}

// InMemoryEventBus dispatches domain events to registered handlers.
//
// Before Start, Publish runs handlers inline. After Start, events are queued
// and dispatched by a worker pool so the publisher never waits on slow
// handlers such as outbound notifications. A full queue falls back to inline
// dispatch rather than dropping the event. Handler errors and panics are
// logged and never reach the publisher.
type InMemoryEventBus struct {
	config   BusConfig
	registry *HandlerRegistry
	logger   *zap.Logger

	mu      sync.RWMutex
	queue   chan dispatch
	running bool
	stopped bool
	wg      sync.WaitGroup
}

type dispatch struct {
	ctx   context.Context
	event shared.DomainEvent
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(config BusConfig, logger *zap.Logger) *InMemoryEventBus {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		config:   config,
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// Publish hands events to their handlers.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return ErrBusStopped
	}

	for _, event := range events {
		if !b.running {
			b.dispatch(ctx, event)
			continue
		}
		// handlers outlive the request that published the event
		d := dispatch{ctx: context.WithoutCancel(ctx), event: event}
		select {
		case b.queue <- d:
		default:
			b.logger.Warn("Event queue full, dispatching inline",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
			)
			b.dispatch(d.ctx, event)
		}
	}
	return nil
}

// Subscribe registers handler for eventTypes, defaulting to the types the
// handler declares.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start starts the dispatch workers
func (b *InMemoryEventBus) Start(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return ErrBusStopped
	}
	if b.running {
		return nil
	}
	b.running = true
	b.queue = make(chan dispatch, b.config.QueueSize)
	for i := 0; i < b.config.Workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	b.logger.Info("Event bus started", zap.Int("workers", b.config.Workers))
	return nil
}

// Stop stops accepting events and waits for the queued ones to be
// dispatched, bounded by ctx.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	wasRunning := b.running
	b.running = false
	if wasRunning {
		close(b.queue)
	}
	b.mu.Unlock()

	if !wasRunning {
		return nil
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("Event bus stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus stop timed out, queued events dropped")
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) worker() {
	defer b.wg.Done()
	for d := range b.queue {
		b.dispatch(d.ctx, d.event)
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, event shared.DomainEvent) {
	for _, handler := range b.registry.Handlers(event.EventType()) {
		if err := b.safeHandle(ctx, handler, event); err != nil {
			b.logger.Error("Event handler failed",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Error(err),
			)
		}
	}
}

func (b *InMemoryEventBus) safeHandle(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
