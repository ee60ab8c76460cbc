package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jpkontreras/cw-sub006/models"
)

// OrderViewRepository is the read-model store for orders.
type OrderViewRepository interface {
	Upsert(ctx context.Context, view *models.OrderView) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.OrderView, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.OrderView, error)
	FindAll(ctx context.Context, page, limit int) ([]models.OrderView, int64, error)
	// AppendHistory records a status transition; re-delivery of the same
	// (order, sequence) pair is a no-op.
	AppendHistory(ctx context.Context, row *models.OrderStatusHistory) error
	HistoryByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
}

// GormOrderViewRepository implements OrderViewRepository using GORM.
type GormOrderViewRepository struct {
	db *gorm.DB
}

// NewGormOrderViewRepository creates a new instance of GormOrderViewRepository.
func NewGormOrderViewRepository(db *gorm.DB) OrderViewRepository {
	return &GormOrderViewRepository{db: db}
}

// Upsert writes the view row, replacing any previous version of it.
func (r *GormOrderViewRepository) Upsert(ctx context.Context, view *models.OrderView) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(view).Error
}

// Delete removes a view row. Used when a conversion is compensated before
// the order ever confirmed.
func (r *GormOrderViewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.OrderView{}, "id = ?", id).Error
}

// FindByID retrieves one order view.
func (r *GormOrderViewRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.OrderView, error) {
	var view models.OrderView
	if err := r.db.WithContext(ctx).First(&view, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &view, nil
}

// FindByOrderNumber retrieves an order view by its assigned number.
func (r *GormOrderViewRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.OrderView, error) {
	var view models.OrderView
	if err := r.db.WithContext(ctx).First(&view, "order_number = ?", orderNumber).Error; err != nil {
		return nil, err
	}
	return &view, nil
}

// FindAll retrieves order views with pagination.
func (r *GormOrderViewRepository) FindAll(ctx context.Context, page, limit int) ([]models.OrderView, int64, error) {
	var views []models.OrderView
	var total int64

	query := r.db.WithContext(ctx).Model(&models.OrderView{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&views).Error; err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// AppendHistory inserts a status row, ignoring duplicates.
func (r *GormOrderViewRepository) AppendHistory(ctx context.Context, row *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}

// HistoryByOrderID returns the recorded transitions of an order in stream order.
func (r *GormOrderViewRepository) HistoryByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
