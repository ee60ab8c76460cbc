package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jpkontreras/cw-sub006/models"
)

// StatsDelta is one event's contribution to the daily rollup.
type StatsDelta struct {
	OrdersConfirmed int64
	OrdersCompleted int64
	OrdersCancelled int64
	GrossSales      float64
	DiscountTotal   float64
}

// StatsRepository maintains the daily analytics rollup. Increment records
// each (aggregate, sequence) position at most once, so a re-delivered event
// cannot double-count the counters.
type StatsRepository interface {
	Increment(ctx context.Context, day string, aggregateID uuid.UUID, sequence int64, delta StatsDelta) error
	FindByDay(ctx context.Context, day string) (*models.DailyOrderStats, error)
}

// GormStatsRepository implements StatsRepository using GORM.
type GormStatsRepository struct {
	db *gorm.DB
}

// NewGormStatsRepository creates a new instance of GormStatsRepository.
func NewGormStatsRepository(db *gorm.DB) StatsRepository {
	return &GormStatsRepository{db: db}
}

func (r *GormStatsRepository) Increment(ctx context.Context, day string, aggregateID uuid.UUID, sequence int64, delta StatsDelta) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The applied-event marker and the counter update commit together.
		applied := models.StatsAppliedEvent{AggregateID: aggregateID, Sequence: sequence}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&applied)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already counted.
			return nil
		}

		var row models.DailyOrderStats
		err := tx.First(&row, "day = ?", day).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.DailyOrderStats{Day: day}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		return tx.Model(&models.DailyOrderStats{}).
			Where("day = ?", day).
			Updates(map[string]any{
				"orders_confirmed": gorm.Expr("orders_confirmed + ?", delta.OrdersConfirmed),
				"orders_completed": gorm.Expr("orders_completed + ?", delta.OrdersCompleted),
				"orders_cancelled": gorm.Expr("orders_cancelled + ?", delta.OrdersCancelled),
				"gross_sales":      gorm.Expr("gross_sales + ?", delta.GrossSales),
				"discount_total":   gorm.Expr("discount_total + ?", delta.DiscountTotal),
			}).Error
	})
}

func (r *GormStatsRepository) FindByDay(ctx context.Context, day string) (*models.DailyOrderStats, error) {
	var row models.DailyOrderStats
	if err := r.db.WithContext(ctx).First(&row, "day = ?", day).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
