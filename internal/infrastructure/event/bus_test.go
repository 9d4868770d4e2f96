package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Shipment", uuid.New())}
}

type testHandler struct {
	eventTypes []string
	err        error
	panics     bool
	block      chan struct{}

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.block != nil {
		<-h.block
	}
	if h.panics {
		panic("handler bug")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_InlineBeforeStart(t *testing.T) {
	bus := NewInMemoryEventBus(BusConfig{}, zap.NewNop())
	collected := &testHandler{eventTypes: []string{"ShipmentCollected"}}
	all := &testHandler{}
	bus.Subscribe(collected)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("ShipmentCollected"),
		newTestEvent("ShipmentStatusChanged"),
	))
	assert.Equal(t, 1, collected.count())
	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(BusConfig{}, nil)
	h := &testHandler{eventTypes: []string{"A"}}
	bus.Subscribe(h, "B")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A"), newTestEvent("B")))
	require.Equal(t, 1, h.count())
	assert.Equal(t, "B", h.handled[0].EventType())

	bus.Unsubscribe(h)
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("B")))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(BusConfig{}, zap.New(core))
	failing := &testHandler{eventTypes: []string{"A"}, err: errors.New("smtp down")}
	panicking := &testHandler{eventTypes: []string{"A"}, panics: true}
	healthy := &testHandler{eventTypes: []string{"A"}}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	assert.NoError(t, bus.Publish(context.Background(), newTestEvent("A")))
	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, 2, logs.FilterMessage("Event handler failed").Len())
}

func TestInMemoryEventBus_AsyncAfterStart(t *testing.T) {
	bus := NewInMemoryEventBus(BusConfig{Workers: 1, QueueSize: 8}, zap.NewNop())
	release := make(chan struct{})
	slow := &testHandler{eventTypes: []string{"A"}, block: release}
	bus.Subscribe(slow)
	require.NoError(t, bus.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Publish(ctx, newTestEvent("A"), newTestEvent("A")))
	// publisher context ending must not affect dispatch
	cancel()
	assert.Equal(t, 0, slow.count())

	close(release)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, bus.Stop(stopCtx))
	assert.Equal(t, 2, slow.count())

	assert.ErrorIs(t, bus.Publish(context.Background(), newTestEvent("A")), ErrBusStopped)
	assert.ErrorIs(t, bus.Start(context.Background()), ErrBusStopped)
}

func TestInMemoryEventBus_FullQueueDispatchesInline(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	bus := NewInMemoryEventBus(BusConfig{Workers: 1, QueueSize: 1}, zap.New(core))
	release := make(chan struct{})
	blocker := &testHandler{eventTypes: []string{"slow"}, block: release}
	fast := &testHandler{eventTypes: []string{"fast"}}
	bus.Subscribe(blocker)
	bus.Subscribe(fast)
	require.NoError(t, bus.Start(context.Background()))
	defer func() { _ = bus.Stop(context.Background()) }()

	// occupy the worker, then fill the queue
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("slow")))
	require.Eventually(t, func() bool { return len(bus.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("fast")))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("fast")))

	assert.Equal(t, 1, fast.count())
	assert.Equal(t, 1, logs.FilterMessage("Event queue full, dispatching inline").Len())
	close(release)
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	a := &testHandler{}
	b := &testHandler{}
	wild := &testHandler{}
	r.Register(a, "X", "Y")
	r.Register(b, "X")
	r.Register(wild)

	assert.Equal(t, []shared.EventHandler{a, b, wild}, r.Handlers("X"))
	assert.Equal(t, []shared.EventHandler{a, wild}, r.Handlers("Y"))
	assert.Equal(t, []shared.EventHandler{wild}, r.Handlers("Z"))

	r.Unregister(a)
	r.Unregister(wild)
	assert.Equal(t, []shared.EventHandler{b}, r.Handlers("X"))
	assert.Empty(t, r.Handlers("Y"))
	_, ok := r.handlers["Y"]
	assert.False(t, ok)
}
