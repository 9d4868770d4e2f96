// Package pricing resolves delivery zones and costs for new shipments.
package pricing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/pricing"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
)

// Quote is the zone and, when a price list matched, the cost of a delivery.
type Quote struct {
	Zone string
	Cost *decimal.Decimal
}

// Calculator resolves postal codes against the routing zone table and a
// client's price list.
type Calculator struct {
	lists  pricing.PriceListRepository
	zones  *pricing.ZoneTable
	logger *zap.Logger
}

// NewCalculator creates a new zone and cost calculator
func NewCalculator(lists pricing.PriceListRepository, zones *pricing.ZoneTable, logger *zap.Logger) *Calculator {
	return &Calculator{lists: lists, zones: zones, logger: logger}
}

// Zone returns the routing zone of postalCode.
func (c *Calculator) Zone(postalCode string) string {
	return c.zones.Resolve(postalCode)
}

// Cost prices a delivery to postalCode under the price list. A list that
// delegates its zones is resolved one level deep. No matching zone returns
// ok=false and no error.
func (c *Calculator) Cost(ctx context.Context, postalCode string, priceListID uuid.UUID) (decimal.Decimal, bool, error) {
	list, err := c.lists.FindByID(ctx, priceListID)
	if err != nil {
		return decimal.Zero, false, err
	}
	if list.DelegateToID != nil && *list.DelegateToID != list.ID {
		delegate, err := c.lists.FindByID(ctx, *list.DelegateToID)
		if err != nil {
			return decimal.Zero, false, err
		}
		list = &pricing.PriceList{ID: list.ID, Name: list.Name, Zones: delegate.Zones}
	}

	zone, ok := list.Match(postalCode)
	if !ok {
		return decimal.Zero, false, nil
	}
	return zone.Price, true, nil
}

// Quote resolves zone and cost for a new shipment. Cost failures never fail
// the quote; they are logged and the cost is left empty.
func (c *Calculator) Quote(ctx context.Context, postalCode string, priceListID *uuid.UUID) Quote {
	q := Quote{Zone: c.Zone(postalCode)}
	if priceListID == nil {
		return q
	}

	cost, ok, err := c.Cost(ctx, postalCode, *priceListID)
	if err != nil {
		failure := shared.NewBestEffortFailure("cost calculation", err)
		level := c.logger.Warn
		if errors.Is(err, shared.ErrNotFound) {
			level = c.logger.Info
		}
		level("delivery cost not resolved",
			zap.String("price_list_id", priceListID.String()),
			zap.String("postal_code", postalCode),
			zap.Error(failure),
		)
		return q
	}
	if ok {
		q.Cost = &cost
	}
	return q
}
