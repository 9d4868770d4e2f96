package shipment

// Status is the canonical lifecycle state of a shipment, independent of any
// provider's own vocabulary.
type Status string

const (
	StatusAwaitingPickup      Status = "AWAITING_PICKUP"
	StatusCollected           Status = "COLLECTED"
	StatusEnRouteToRecipient  Status = "EN_ROUTE_TO_RECIPIENT"
	StatusDelivered           Status = "DELIVERED"
	StatusCancelled           Status = "CANCELLED"
	StatusRejectedByRecipient Status = "REJECTED_BY_RECIPIENT"
	StatusReturnedToClient    Status = "RETURNED_TO_CLIENT"
)

// AllStatuses returns every canonical status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusAwaitingPickup,
		StatusCollected,
		StatusEnRouteToRecipient,
		StatusDelivered,
		StatusCancelled,
		StatusRejectedByRecipient,
		StatusReturnedToClient,
	}
}

// TerminalStatuses returns the statuses that accept no further transition.
func TerminalStatuses() []Status {
	return []Status{StatusDelivered, StatusCancelled, StatusRejectedByRecipient}
}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusAwaitingPickup, StatusCollected, StatusEnRouteToRecipient, StatusDelivered,
		StatusCancelled, StatusRejectedByRecipient, StatusReturnedToClient:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no transition may leave this status, manual or
// polled.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRejectedByRecipient:
		return true
	}
	return false
}

// stage orders the forward lifecycle. ReturnedToClient sits on its own
// branch and has no stage.
func (s Status) stage() int {
	switch s {
	case StatusAwaitingPickup:
		return 0
	case StatusCollected:
		return 1
	case StatusEnRouteToRecipient:
		return 2
	case StatusDelivered, StatusCancelled, StatusRejectedByRecipient:
		return 3
	}
	return -1
}

// RegressesTo reports whether moving to target would go backwards in the
// lifecycle. A returned parcel can only regress to AwaitingPickup; any
// status may branch off to ReturnedToClient.
func (s Status) RegressesTo(target Status) bool {
	switch {
	case s == StatusReturnedToClient:
		return target == StatusAwaitingPickup
	case target == StatusReturnedToClient:
		return false
	}
	return target.stage() < s.stage()
}

// CanTransitionTo checks if a manual transition to target is allowed
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusAwaitingPickup:
		return target == StatusCollected
	case StatusCollected:
		return target == StatusEnRouteToRecipient ||
			target == StatusCancelled ||
			target == StatusReturnedToClient
	case StatusEnRouteToRecipient:
		return target == StatusDelivered ||
			target == StatusCancelled ||
			target == StatusRejectedByRecipient ||
			target == StatusReturnedToClient
	case StatusReturnedToClient:
		return target == StatusCollected
	case StatusDelivered, StatusCancelled, StatusRejectedByRecipient:
		return false // Terminal states
	}
	return false
}
