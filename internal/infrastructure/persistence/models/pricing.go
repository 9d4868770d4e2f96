package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mgastron/mvgtms-sub000/internal/domain/pricing"
)

// PriceListModel is the persistence model of a client tariff.
type PriceListModel struct {
	BaseModel
	Name         string           `gorm:"type:varchar(120);not null"`
	DelegateToID *uuid.UUID       `gorm:"type:uuid"`
	Zones        []PriceZoneModel `gorm:"foreignKey:PriceListID"`
}

// TableName returns the table name for GORM
func (PriceListModel) TableName() string {
	return "price_lists"
}

// PriceZoneModel prices the postal codes matched by Pattern. Position keeps
// the first-match order of the list.
type PriceZoneModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	PriceListID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	Name        string          `gorm:"type:varchar(100);not null"`
	Pattern     string          `gorm:"type:varchar(500);not null"`
	Price       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
}

// TableName returns the table name for GORM
func (PriceZoneModel) TableName() string {
	return "price_zones"
}

// ToDomain converts the persistence model to a domain PriceList.
func (m *PriceListModel) ToDomain() *pricing.PriceList {
	list := &pricing.PriceList{
		ID:           m.ID,
		Name:         m.Name,
		DelegateToID: m.DelegateToID,
		Zones:        make([]pricing.PriceZone, 0, len(m.Zones)),
	}
	for _, z := range m.Zones {
		list.Zones = append(list.Zones, pricing.PriceZone{Name: z.Name, Pattern: z.Pattern, Price: z.Price})
	}
	return list
}

// PriceListFromDomain converts a domain PriceList with its zones.
func PriceListFromDomain(l *pricing.PriceList) *PriceListModel {
	now := time.Now().UTC()
	m := &PriceListModel{
		BaseModel:    BaseModel{ID: l.ID, CreatedAt: now, UpdatedAt: now},
		Name:         l.Name,
		DelegateToID: l.DelegateToID,
		Zones:        make([]PriceZoneModel, 0, len(l.Zones)),
	}
	for i, z := range l.Zones {
		m.Zones = append(m.Zones, PriceZoneModel{
			ID:          uuid.New(),
			PriceListID: l.ID,
			Position:    i,
			Name:        z.Name,
			Pattern:     z.Pattern,
			Price:       z.Price,
		})
	}
	return m
}
