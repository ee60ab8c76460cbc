package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jpkontreras/cw-sub006/models"
)

// CheckpointRepository tracks per-projector, per-aggregate progress.
type CheckpointRepository interface {
	Get(ctx context.Context, projector string, aggregateID uuid.UUID) (*models.ProjectorCheckpoint, error)
	Save(ctx context.Context, cp *models.ProjectorCheckpoint) error
	MarkStalled(ctx context.Context, projector string, aggregateID uuid.UUID, lastErr string) error
}

// GormCheckpointRepository implements CheckpointRepository using GORM.
type GormCheckpointRepository struct {
	db *gorm.DB
}

// NewGormCheckpointRepository creates a new instance of GormCheckpointRepository.
func NewGormCheckpointRepository(db *gorm.DB) CheckpointRepository {
	return &GormCheckpointRepository{db: db}
}

// Get returns the checkpoint, or a zero checkpoint if none exists yet.
func (r *GormCheckpointRepository) Get(ctx context.Context, projector string, aggregateID uuid.UUID) (*models.ProjectorCheckpoint, error) {
	var cp models.ProjectorCheckpoint
	err := r.db.WithContext(ctx).
		First(&cp, "projector = ? AND aggregate_id = ?", projector, aggregateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ProjectorCheckpoint{Projector: projector, AggregateID: aggregateID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// Save upserts the checkpoint row.
func (r *GormCheckpointRepository) Save(ctx context.Context, cp *models.ProjectorCheckpoint) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "projector"}, {Name: "aggregate_id"}},
			UpdateAll: true,
		}).
		Create(cp).Error
}

// MarkStalled halts the projection of one aggregate after a bad event.
func (r *GormCheckpointRepository) MarkStalled(ctx context.Context, projector string, aggregateID uuid.UUID, lastErr string) error {
	cp, err := r.Get(ctx, projector, aggregateID)
	if err != nil {
		return err
	}
	cp.Stalled = true
	cp.LastError = lastErr
	return r.Save(ctx, cp)
}
