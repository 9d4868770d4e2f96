package shipment

import (
	"context"
	"errors"
	"time"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// DefaultDedupWindow is the sale time tolerance of the fuzzy path.
const DefaultDedupWindow = 2 * time.Minute

// DedupEngine decides whether a draft is an order already on file.
type DedupEngine struct {
	repo   shipment.Repository
	window time.Duration
}

// NewDedupEngine creates a new dedup engine
func NewDedupEngine(repo shipment.Repository, window time.Duration) *DedupEngine {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &DedupEngine{repo: repo, window: window}
}

// FindExisting returns the non-deleted shipment draft duplicates, or nil.
//
// The exact path matches the synthetic tracking code within the client, then
// the provider shipment id for live drafts. The fuzzy path matches same
// client string, same recipient after trim and case fold, and sale times at
// most the window apart.
func (d *DedupEngine) FindExisting(ctx context.Context, draft *shipment.Draft) (*shipment.Shipment, error) {
	if code := draft.TrackingCode(); code != "" {
		found, err := d.repo.FindByTrackingCode(ctx, draft.ClientID, code)
		if hit, err := exactHit(found, err); hit || err != nil {
			return found, err
		}
	}

	if id := draft.ExternalShipmentID(); id != "" {
		found, err := d.repo.FindByExternalShipmentID(ctx, draft.Provider, id)
		if hit, err := exactHit(found, err); hit || err != nil {
			return found, err
		}
	}

	if draft.SaleAt.IsZero() {
		return nil, nil
	}
	candidates, err := d.repo.FindSaleWindow(ctx, draft.ClientRef, draft.SaleAt.Add(-d.window), draft.SaleAt.Add(d.window))
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.MatchesFuzzy(draft.ClientRef, draft.Recipient.Name, draft.SaleAt, d.window) {
			return c, nil
		}
	}
	return nil, nil
}

// Window returns the fuzzy tolerance in use.
func (d *DedupEngine) Window() time.Duration {
	return d.window
}

// exactHit folds a lookup result: a hit, a real failure, or a miss.
func exactHit(found *shipment.Shipment, err error) (bool, error) {
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return found != nil, nil
}
