package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jpkontreras/cw-sub006/models"
)

// SessionViewRepository is the read-model store for sessions.
type SessionViewRepository interface {
	Upsert(ctx context.Context, view *models.SessionView) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SessionView, error)
	// FindInactiveSince returns sessions in the given statuses whose last
	// activity is older than cutoff. The reaper feeds on this.
	FindInactiveSince(ctx context.Context, cutoff time.Time, statuses []string, limit int) ([]models.SessionView, error)
	FindByStatus(ctx context.Context, status string, page, limit int) ([]models.SessionView, int64, error)
}

// GormSessionViewRepository implements SessionViewRepository using GORM.
type GormSessionViewRepository struct {
	db *gorm.DB
}

// NewGormSessionViewRepository creates a new instance of GormSessionViewRepository.
func NewGormSessionViewRepository(db *gorm.DB) SessionViewRepository {
	return &GormSessionViewRepository{db: db}
}

// Upsert writes the view row, replacing any previous version of it.
func (r *GormSessionViewRepository) Upsert(ctx context.Context, view *models.SessionView) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(view).Error
}

// FindByID retrieves one session view.
func (r *GormSessionViewRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.SessionView, error) {
	var view models.SessionView
	if err := r.db.WithContext(ctx).First(&view, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &view, nil
}

// FindInactiveSince retrieves reapable sessions.
func (r *GormSessionViewRepository) FindInactiveSince(ctx context.Context, cutoff time.Time, statuses []string, limit int) ([]models.SessionView, error) {
	var views []models.SessionView
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND last_activity_at < ?", statuses, cutoff).
		Limit(limit).
		Find(&views).Error; err != nil {
		return nil, err
	}
	return views, nil
}

// FindByStatus retrieves session views in a status with pagination.
func (r *GormSessionViewRepository) FindByStatus(ctx context.Context, status string, page, limit int) ([]models.SessionView, int64, error) {
	var views []models.SessionView
	var total int64

	query := r.db.WithContext(ctx).Model(&models.SessionView{}).Where("status = ?", status)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("last_activity_at DESC").
		Find(&views).Error; err != nil {
		return nil, 0, err
	}
	return views, total, nil
}
