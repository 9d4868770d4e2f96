package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/persistence/models"
)

// GormClientRepository implements integration.ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByID finds a client by ID with its provider links
func (r *GormClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).Preload("Links").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrClientNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListLinkedTo returns clients holding a link to provider, ordered by code
func (r *GormClientRepository) ListLinkedTo(ctx context.Context, provider shipment.Provider) ([]*integration.Client, error) {
	var rows []models.ClientModel
	err := r.db.WithContext(ctx).
		Preload("Links").
		Where("id IN (?)", r.db.Model(&models.ProviderLinkModel{}).Select("client_id").Where("provider = ?", string(provider))).
		Order("code ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	clients := make([]*integration.Client, len(rows))
	for i := range rows {
		clients[i] = rows[i].ToDomain()
	}
	return clients, nil
}

// Create inserts a client and any links it already carries
func (r *GormClientRepository) Create(ctx context.Context, client *integration.Client) error {
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.ClientFromDomain(client)).Error; err != nil {
			return err
		}
		for i := range client.Links {
			client.Links[i].ClientID = client.ID
			if err := upsertLink(tx, &client.Links[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveLink creates or replaces the client's link to link.Provider
func (r *GormClientRepository) SaveLink(ctx context.Context, link *integration.ProviderLink) error {
	return upsertLink(r.db.WithContext(ctx), link)
}

func upsertLink(tx *gorm.DB, link *integration.ProviderLink) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	link.UpdatedAt = time.Now().UTC()
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "client_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"external_account_id", "shop_domain", "access_token", "refresh_token",
			"token_expires_at", "shipping_method_filter", "last_synced_at", "updated_at",
		}),
	}).Create(models.LinkFromDomain(link)).Error
}

// UpdateCredential stores cred on the client's link to provider
func (r *GormClientRepository) UpdateCredential(ctx context.Context, clientID uuid.UUID, provider shipment.Provider, cred integration.Credential) error {
	var expiresAt *time.Time
	if cred.ExpiresAt != nil {
		t := cred.ExpiresAt.UTC()
		expiresAt = &t
	}
	return r.updateLink(ctx, clientID, provider, map[string]any{
		"access_token":     cred.AccessToken,
		"refresh_token":    cred.RefreshToken,
		"token_expires_at": expiresAt,
	})
}

// UpdateLastSynced records the end of a successful ingestion pass
func (r *GormClientRepository) UpdateLastSynced(ctx context.Context, clientID uuid.UUID, provider shipment.Provider, at time.Time) error {
	return r.updateLink(ctx, clientID, provider, map[string]any{"last_synced_at": at.UTC()})
}

func (r *GormClientRepository) updateLink(ctx context.Context, clientID uuid.UUID, provider shipment.Provider, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.ProviderLinkModel{}).
		Where("client_id = ? AND provider = ?", clientID, string(provider)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrLinkNotFound
	}
	return nil
}

var _ integration.ClientRepository = (*GormClientRepository)(nil)
