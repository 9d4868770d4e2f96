package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mgastron/mvgtms-sub000/internal/domain/pricing"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/persistence/models"
)

// GormPriceListRepository implements pricing.PriceListRepository using GORM
type GormPriceListRepository struct {
	db *gorm.DB
}

// NewGormPriceListRepository creates a new GormPriceListRepository
func NewGormPriceListRepository(db *gorm.DB) *GormPriceListRepository {
	return &GormPriceListRepository{db: db}
}

// FindByID loads a price list with its zones in match order
func (r *GormPriceListRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.PriceList, error) {
	var model models.PriceListModel
	err := r.db.WithContext(ctx).
		Preload("Zones", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pricing.ErrPriceListNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or replaces the list and all of its zones
func (r *GormPriceListRepository) Save(ctx context.Context, list *pricing.PriceList) error {
	for _, z := range list.Zones {
		if err := pricing.ValidatePattern(z.Pattern); err != nil {
			return err
		}
	}
	if list.ID == uuid.Nil {
		list.ID = uuid.New()
	}
	model := models.PriceListFromDomain(list)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PriceListModel
		err := tx.Select("id", "created_at").First(&existing, "id = ?", list.ID).Error
		switch {
		case err == nil:
			model.CreatedAt = existing.CreatedAt
			model.UpdatedAt = time.Now().UTC()
			if err := tx.Model(&models.PriceListModel{}).Where("id = ?", list.ID).Updates(map[string]any{
				"name":           model.Name,
				"delegate_to_id": model.DelegateToID,
				"updated_at":     model.UpdatedAt,
			}).Error; err != nil {
				return err
			}
			if err := tx.Where("price_list_id = ?", list.ID).Delete(&models.PriceZoneModel{}).Error; err != nil {
				return err
			}
			if len(model.Zones) > 0 {
				return tx.Create(&model.Zones).Error
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(model).Error
		default:
			return err
		}
	})
}

var _ pricing.PriceListRepository = (*GormPriceListRepository)(nil)
