package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// ClientModel is the persistence model of a merchant.
type ClientModel struct {
	BaseModel
	Code        string              `gorm:"type:varchar(40);not null;uniqueIndex"`
	Name        string              `gorm:"type:varchar(200);not null"`
	PriceListID *uuid.UUID          `gorm:"type:uuid"`
	Links       []ProviderLinkModel `gorm:"foreignKey:ClientID"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client.
func (m *ClientModel) ToDomain() *integration.Client {
	c := &integration.Client{
		ID:          m.ID,
		Code:        m.Code,
		Name:        m.Name,
		PriceListID: m.PriceListID,
		Links:       make([]integration.ProviderLink, 0, len(m.Links)),
	}
	for i := range m.Links {
		c.Links = append(c.Links, m.Links[i].ToDomain())
	}
	return c
}

// ClientFromDomain converts a domain Client without its links.
func ClientFromDomain(c *integration.Client) *ClientModel {
	now := time.Now().UTC()
	return &ClientModel{
		BaseModel:   BaseModel{ID: c.ID, CreatedAt: now, UpdatedAt: now},
		Code:        c.Code,
		Name:        c.Name,
		PriceListID: c.PriceListID,
	}
}

// ProviderLinkModel stores a client's authorized account on one provider.
// Tokens are held as issued; encrypting them at rest belongs to the database
// deployment.
type ProviderLinkModel struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primary_key"`
	ClientID             uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_provider_links_client_provider,priority:1"`
	Provider             string     `gorm:"type:varchar(20);not null;uniqueIndex:idx_provider_links_client_provider,priority:2;index"`
	ExternalAccountID    string     `gorm:"type:varchar(100)"`
	ShopDomain           string     `gorm:"type:varchar(200)"`
	AccessToken          string     `gorm:"type:text"`
	RefreshToken         string     `gorm:"type:text"`
	ExpiresAt            *time.Time `gorm:"column:token_expires_at"`
	ShippingMethodFilter string     `gorm:"type:varchar(120)"`
	LastSyncedAt         *time.Time
	UpdatedAt            time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProviderLinkModel) TableName() string {
	return "provider_links"
}

// ToDomain converts the persistence model to a domain ProviderLink.
func (m *ProviderLinkModel) ToDomain() integration.ProviderLink {
	return integration.ProviderLink{
		ID:                m.ID,
		ClientID:          m.ClientID,
		Provider:          shipment.Provider(m.Provider),
		ExternalAccountID: m.ExternalAccountID,
		ShopDomain:        m.ShopDomain,
		Credential: integration.Credential{
			AccessToken:  m.AccessToken,
			RefreshToken: m.RefreshToken,
			ExpiresAt:    m.ExpiresAt,
		},
		ShippingMethodFilter: m.ShippingMethodFilter,
		LastSyncedAt:         m.LastSyncedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// LinkFromDomain converts a domain ProviderLink.
func LinkFromDomain(l *integration.ProviderLink) *ProviderLinkModel {
	return &ProviderLinkModel{
		ID:                   l.ID,
		ClientID:             l.ClientID,
		Provider:             string(l.Provider),
		ExternalAccountID:    l.ExternalAccountID,
		ShopDomain:           l.ShopDomain,
		AccessToken:          l.Credential.AccessToken,
		RefreshToken:         l.Credential.RefreshToken,
		ExpiresAt:            utcPtr(l.Credential.ExpiresAt),
		ShippingMethodFilter: l.ShippingMethodFilter,
		LastSyncedAt:         utcPtr(l.LastSyncedAt),
		UpdatedAt:            l.UpdatedAt.UTC(),
	}
}
