package shipment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingPlaceholder fills non-essential fields a provider did not send.
const PendingPlaceholder = "pending"

// DraftKind tags which provider-specific detail block a Draft carries.
type DraftKind string

const (
	// DraftKindSnapshot comes from a provider that only hands back a
	// point-in-time order snapshot.
	DraftKindSnapshot DraftKind = "SNAPSHOT"
	// DraftKindLiveTracked comes from the provider whose shipment status can
	// be polled later by shipment id.
	DraftKindLiveTracked DraftKind = "LIVE_TRACKED"
	// DraftKindManual is entered at the dispatch desk.
	DraftKindManual DraftKind = "MANUAL"
)

// SnapshotDetails is the detail block of snapshot drafts.
type SnapshotDetails struct {
	StoreID   string
	RawStatus string
}

// LiveDetails is the detail block of live-tracked drafts.
type LiveDetails struct {
	ShipmentID string
	OrderID    string
	SellerID   string
	RawStatus  string
}

// Draft is a provider-normalized, not yet persisted candidate shipment.
// Exactly one of Snapshot or Live is set, matching Kind; manual drafts carry
// neither.
type Draft struct {
	Kind              DraftKind
	Provider          Provider
	ClientID          uuid.UUID
	ClientRef         string
	ExternalReference string
	OrderNumber       string
	Recipient         Recipient
	DeclaredValue     decimal.Decimal
	WeightKg          decimal.Decimal
	ShippingMethod    string
	ProvisionalStatus Status
	SaleAt            time.Time

	Snapshot *SnapshotDetails
	Live     *LiveDetails
}

// Validate checks the union is well formed and essential fields are present.
func (d *Draft) Validate() error {
	if !d.Provider.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidDraft, d.Provider)
	}
	if d.ClientID == uuid.Nil || strings.TrimSpace(d.ClientRef) == "" {
		return fmt.Errorf("%w: client is required", ErrInvalidDraft)
	}
	if strings.TrimSpace(d.ExternalReference) == "" {
		return fmt.Errorf("%w: external reference is required", ErrInvalidDraft)
	}
	if d.ProvisionalStatus != "" && !d.ProvisionalStatus.IsValid() {
		return fmt.Errorf("%w: provisional status %q", ErrInvalidDraft, d.ProvisionalStatus)
	}

	switch d.Kind {
	case DraftKindSnapshot:
		if d.Snapshot == nil || d.Live != nil {
			return fmt.Errorf("%w: snapshot draft must carry only snapshot details", ErrInvalidDraft)
		}
		if d.Provider.IsLiveTracked() || d.Provider == ProviderManual {
			return fmt.Errorf("%w: provider %s does not produce snapshot drafts", ErrInvalidDraft, d.Provider)
		}
	case DraftKindLiveTracked:
		if d.Live == nil || d.Snapshot != nil {
			return fmt.Errorf("%w: live draft must carry only live details", ErrInvalidDraft)
		}
		if !d.Provider.IsLiveTracked() {
			return fmt.Errorf("%w: provider %s is not live-tracked", ErrInvalidDraft, d.Provider)
		}
		if strings.TrimSpace(d.Live.ShipmentID) == "" {
			return fmt.Errorf("%w: live draft needs a provider shipment id", ErrInvalidDraft)
		}
	case DraftKindManual:
		if d.Snapshot != nil || d.Live != nil || d.Provider != ProviderManual {
			return fmt.Errorf("%w: manual draft carries no provider details", ErrInvalidDraft)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDraft, d.Kind)
	}
	return nil
}

// TrackingCode is the stable synthetic code provider prefix + order number,
// empty when the provider gave no order number.
func (d *Draft) TrackingCode() string {
	number := strings.TrimSpace(d.OrderNumber)
	if number == "" || number == PendingPlaceholder {
		return ""
	}
	return d.Provider.TrackingPrefix() + "-" + number
}

// ExternalShipmentID returns the provider shipment id used for polling.
func (d *Draft) ExternalShipmentID() string {
	if d.Live == nil {
		return ""
	}
	return d.Live.ShipmentID
}

// OrPending returns value trimmed, or the placeholder when it is blank.
func OrPending(value string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return PendingPlaceholder
}
