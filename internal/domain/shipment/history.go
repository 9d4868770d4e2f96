package shipment

import (
	"time"

	"github.com/google/uuid"
)

// Origin records what caused a history entry.
type Origin string

const (
	OriginManual     Origin = "manual"
	OriginIngestion  Origin = "ingestion"
	OriginPolling    Origin = "polling"
	OriginScan       Origin = "scan"
	OriginAssignment Origin = "assignment"
)

// Well-known actors for automated changes.
const (
	ActorSystemSync      = "system (sync)"
	ActorSystemIngestion = "system (ingestion)"
)

// HistoryEntry is one immutable line of a shipment's ledger. One entry is
// written per accepted status change or driver (re)assignment.
type HistoryEntry struct {
	ID         uuid.UUID
	ShipmentID uuid.UUID
	Status     Status
	Timestamp  time.Time
	Actor      string
	Note       string
	Origin     Origin
}

func newHistoryEntry(shipmentID uuid.UUID, status Status, at time.Time, actor, note string, origin Origin) HistoryEntry {
	return HistoryEntry{
		ID:         uuid.New(),
		ShipmentID: shipmentID,
		Status:     status,
		Timestamp:  at,
		Actor:      actor,
		Note:       note,
		Origin:     origin,
	}
}
