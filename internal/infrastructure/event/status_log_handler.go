package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/logger"
)

// StatusLogHandler writes one structured line per shipment status change.
type StatusLogHandler struct {
	logger *zap.Logger
}

// NewStatusLogHandler creates a new status change logger
func NewStatusLogHandler(logger *zap.Logger) *StatusLogHandler {
	return &StatusLogHandler{logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *StatusLogHandler) EventTypes() []string {
	return []string{shipment.EventTypeStatusChanged}
}

// Handle logs a StatusChangedEvent; other events are ignored.
func (h *StatusLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*shipment.StatusChangedEvent)
	if !ok {
		return nil
	}
	logger.L(ctx, h.logger).Info("Shipment status changed",
		zap.String("shipment_id", changed.ShipmentID.String()),
		zap.String("client_id", changed.ClientID.String()),
		zap.String("from", changed.From.String()),
		zap.String("to", changed.To.String()),
		zap.String("origin", string(changed.Origin)),
		zap.Time("occurred_at", changed.OccurredAt()),
	)
	return nil
}

var _ shared.EventHandler = (*StatusLogHandler)(nil)
