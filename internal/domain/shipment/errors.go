package shipment

import "github.com/mgastron/mvgtms-sub000/internal/domain/shared"

var (
	ErrShipmentNotFound          = shared.NewDomainError(shared.CodeNotFound, "shipment not found")
	ErrManualTransitionForbidden = shared.NewDomainError(shared.CodeForbidden, "status of live-tracked shipments is owned by status sync and cannot be changed manually")
	ErrInvalidTransition         = shared.NewDomainError(shared.CodeInvalidState, "status transition not allowed")
	ErrTerminalStatus            = shared.NewDomainError(shared.CodeInvalidState, "shipment is in a terminal status")
	ErrShipmentDeleted           = shared.NewDomainError(shared.CodeInvalidState, "shipment is deleted")
	ErrInvalidStatus             = shared.NewDomainError(shared.CodeValidation, "unknown shipment status")
	ErrDriverRequired            = shared.NewDomainError(shared.CodeValidation, "driver is required")
	ErrInvalidDraft              = shared.NewDomainError(shared.CodeValidation, "invalid shipment draft")
	ErrDuplicateDedupKey         = shared.NewDomainError(shared.CodeAlreadyExists, "a shipment with the same dedup key already exists")
	ErrSearchCodeExhausted       = shared.NewDomainError(shared.CodeConflict, "could not allocate a unique search code")
	ErrStaleShipment             = shared.NewDomainError(shared.CodeConcurrencyConflict, "shipment was modified by another process")
)
