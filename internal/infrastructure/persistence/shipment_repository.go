package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/persistence/models"
)

// GormShipmentRepository implements shipment.Repository using GORM
type GormShipmentRepository struct {
	db *gorm.DB
}

// NewGormShipmentRepository creates a new GormShipmentRepository
func NewGormShipmentRepository(db *gorm.DB) *GormShipmentRepository {
	return &GormShipmentRepository{db: db}
}

// FindByID finds a shipment by ID, deleted ones included
func (r *GormShipmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*shipment.Shipment, error) {
	return r.first(ctx, r.db.Where("id = ?", id))
}

// FindByTrackingToken resolves the public tracking link token
func (r *GormShipmentRepository) FindByTrackingToken(ctx context.Context, token string) (*shipment.Shipment, error) {
	return r.first(ctx, r.db.Where("tracking_token = ?", token))
}

// FindByTrackingCode returns the non-deleted shipment of a client carrying code
func (r *GormShipmentRepository) FindByTrackingCode(ctx context.Context, clientID uuid.UUID, code string) (*shipment.Shipment, error) {
	return r.first(ctx, r.db.Where("client_id = ? AND tracking_code = ? AND deleted = ?", clientID, code, false))
}

// FindByExternalShipmentID returns the non-deleted shipment polled under id
func (r *GormShipmentRepository) FindByExternalShipmentID(ctx context.Context, source shipment.Provider, id string) (*shipment.Shipment, error) {
	return r.first(ctx, r.db.Where("source = ? AND external_shipment_id = ? AND deleted = ?", string(source), id, false))
}

func (r *GormShipmentRepository) first(ctx context.Context, query *gorm.DB) (*shipment.Shipment, error) {
	var model models.ShipmentModel
	if err := query.WithContext(ctx).Order("created_at ASC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shipment.ErrShipmentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindSaleWindow returns non-deleted shipments of clientRef sold within [from, to]
func (r *GormShipmentRepository) FindSaleWindow(ctx context.Context, clientRef string, from, to time.Time) ([]*shipment.Shipment, error) {
	var rows []models.ShipmentModel
	err := r.db.WithContext(ctx).
		Where("client_ref = ? AND deleted = ? AND sale_at >= ? AND sale_at <= ?", clientRef, false, from.UTC(), to.UTC()).
		Order("sale_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toShipments(rows), nil
}

// ExistsSearchCode reports whether any shipment already holds code
func (r *GormShipmentRepository) ExistsSearchCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ShipmentModel{}).Where("search_code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListOpenBySource returns non-deleted, non-terminal shipments of source
func (r *GormShipmentRepository) ListOpenBySource(ctx context.Context, source shipment.Provider) ([]*shipment.Shipment, error) {
	terminal := make([]string, 0, 3)
	for _, s := range shipment.TerminalStatuses() {
		terminal = append(terminal, string(s))
	}
	var rows []models.ShipmentModel
	err := r.db.WithContext(ctx).
		Where("source = ? AND deleted = ? AND status NOT IN ?", string(source), false, terminal).
		Order("last_moved_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toShipments(rows), nil
}

// List returns a page of non-deleted shipments, newest sale first, with the total count
func (r *GormShipmentRepository) List(ctx context.Context, filter shipment.Filter) ([]*shipment.Shipment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ShipmentModel{}).Where("deleted = ?", false)
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", string(filter.Source))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(recipient_name) LIKE ? OR LOWER(external_reference) LIKE ? OR LOWER(tracking_code) LIKE ? OR search_code = ?",
			like, like, like, search,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Normalize()
	var rows []models.ShipmentModel
	err := query.Order("sale_at DESC").Order("id ASC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return toShipments(rows), total, nil
}

// Create inserts the shipment and its pending history in one transaction
func (r *GormShipmentRepository) Create(ctx context.Context, s *shipment.Shipment) error {
	var model models.ShipmentModel
	model.FromDomain(s)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return insertHistory(tx, s.PendingHistory())
	})
	if isUniqueViolation(err, "dedup_key") {
		return shipment.ErrDuplicateDedupKey
	}
	return err
}

// Save updates the shipment when its version still matches the stored one,
// then appends pending history. The version is incremented on success.
func (r *GormShipmentRepository) Save(ctx context.Context, s *shipment.Shipment) error {
	var model models.ShipmentModel
	model.FromDomain(s)

	newVersion := s.Version + 1
	updatedAt := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ShipmentModel{}).
			Where("id = ? AND version = ?", s.ID, s.Version).
			Updates(mutableColumns(&model, newVersion, updatedAt))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.ShipmentModel{}).Where("id = ?", s.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shipment.ErrShipmentNotFound
			}
			return shipment.ErrStaleShipment
		}
		return insertHistory(tx, s.PendingHistory())
	})
	if err != nil {
		return err
	}

	s.IncrementVersion()
	s.UpdatedAt = updatedAt
	return nil
}

// mutableColumns lists every column a saved shipment may change. Identity,
// source and tokens are fixed at creation; the dedup key is only ever
// cleared, by soft delete.
func mutableColumns(m *models.ShipmentModel, version int, updatedAt time.Time) map[string]any {
	return map[string]any{
		"external_shipment_id": m.ExternalShipmentID,
		"recipient_name":       m.RecipientName,
		"recipient_address":    m.RecipientAddress,
		"recipient_locality":   m.RecipientLocality,
		"recipient_postal":     m.RecipientPostal,
		"recipient_phone":      m.RecipientPhone,
		"recipient_email":      m.RecipientEmail,
		"declared_value":       m.DeclaredValue,
		"weight_kg":            m.WeightKg,
		"shipping_method":      m.ShippingMethod,
		"delivery_zone":        m.DeliveryZone,
		"delivery_cost":        m.DeliveryCost,
		"status":               m.Status,
		"assigned_at":          m.AssignedAt,
		"collected_at":         m.CollectedAt,
		"delivered_at":         m.DeliveredAt,
		"cancelled_at":         m.CancelledAt,
		"last_moved_at":        m.LastMovedAt,
		"assigned_driver":      m.AssignedDriver,
		"collected":            m.Collected,
		"deleted":              m.Deleted,
		"dedup_key":            m.DedupKey,
		"tracking_code":        m.TrackingCode,
		"receiver_role":        m.ReceiverRole,
		"receiver_name":        m.ReceiverName,
		"receiver_document":    m.ReceiverDocument,
		"version":              version,
		"updated_at":           updatedAt,
	}
}

// History returns the shipment's ledger, oldest first
func (r *GormShipmentRepository) History(ctx context.Context, shipmentID uuid.UUID) ([]shipment.HistoryEntry, error) {
	var rows []models.ShipmentHistoryModel
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("occurred_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	entries := make([]shipment.HistoryEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

func insertHistory(tx *gorm.DB, entries []shipment.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]models.ShipmentHistoryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.HistoryFromDomain(e)
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
	}
	return tx.Create(&rows).Error
}

func toShipments(rows []models.ShipmentModel) []*shipment.Shipment {
	out := make([]*shipment.Shipment, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ shipment.Repository = (*GormShipmentRepository)(nil)
