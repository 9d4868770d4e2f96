package shipment

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// Notifier delivers a message to a recipient address.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// CollectedHandler tells the recipient their parcel was picked up. It runs
// after the status change is committed; a failed send is logged and dropped.
type CollectedHandler struct {
	notifier        Notifier
	trackingBaseURL string
	logger          *zap.Logger
}

// NewCollectedHandler creates a new handler for ShipmentCollected events
func NewCollectedHandler(notifier Notifier, trackingBaseURL string, logger *zap.Logger) *CollectedHandler {
	return &CollectedHandler{
		notifier:        notifier,
		trackingBaseURL: strings.TrimRight(trackingBaseURL, "/"),
		logger:          logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *CollectedHandler) EventTypes() []string {
	return []string{shipment.EventTypeCollected}
}

// Handle sends the collection notice for a CollectedEvent
func (h *CollectedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	collected, ok := event.(*shipment.CollectedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			shipment.EventTypeCollected, event.EventType())
	}

	email := strings.TrimSpace(collected.RecipientEmail)
	if email == "" || email == shipment.PendingPlaceholder {
		h.logger.Debug("no recipient email, skipping collection notice",
			zap.String("shipment_id", collected.ShipmentID.String()),
		)
		return nil
	}

	subject, body := h.message(collected)
	if err := h.notifier.Send(ctx, email, subject, body); err != nil {
		failure := shared.NewBestEffortFailure("collection notice", err)
		h.logger.Warn(failure.Error(),
			zap.String("shipment_id", collected.ShipmentID.String()),
			zap.Error(err),
		)
		return nil
	}

	h.logger.Info("collection notice sent",
		zap.String("shipment_id", collected.ShipmentID.String()),
	)
	return nil
}

func (h *CollectedHandler) message(e *shipment.CollectedEvent) (string, string) {
	sender := e.ClientRef
	if _, name, found := strings.Cut(sender, " - "); found {
		sender = name
	}
	subject := fmt.Sprintf("Your %s order is on its way", sender)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", e.RecipientName)
	fmt.Fprintf(&b, "We picked up your %s order and it is now with our delivery team.\n", sender)
	if h.trackingBaseURL != "" {
		fmt.Fprintf(&b, "\nFollow it here: %s/%s\n", h.trackingBaseURL, e.TrackingToken)
	}
	return subject, b.String()
}

var _ shared.EventHandler = (*CollectedHandler)(nil)
