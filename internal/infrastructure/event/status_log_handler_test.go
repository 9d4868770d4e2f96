package event

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

func TestStatusLogHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewStatusLogHandler(zap.New(core))
	assert.Equal(t, []string{shipment.EventTypeStatusChanged}, h.EventTypes())

	sh := &shipment.Shipment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ClientID:          uuid.New(),
		Status:            shipment.StatusCollected,
	}
	event := shipment.NewStatusChangedEvent(sh, shipment.StatusAwaitingPickup, shipment.OriginScan)

	require.NoError(t, h.Handle(context.Background(), event))
	entries := logs.FilterMessage("Shipment status changed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, sh.ID.String(), fields["shipment_id"])
	assert.Equal(t, shipment.StatusAwaitingPickup.String(), fields["from"])
	assert.Equal(t, shipment.StatusCollected.String(), fields["to"])
	assert.Equal(t, string(shipment.OriginScan), fields["origin"])

	require.NoError(t, h.Handle(context.Background(), newTestEvent("Other")))
	assert.Equal(t, 1, logs.Len())
}
