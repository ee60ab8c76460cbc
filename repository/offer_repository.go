package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jpkontreras/cw-sub006/offers"
)

// ErrUsageLimitReached is returned when a redemption would exceed the
// offer's global usage limit.
var ErrUsageLimitReached = errors.New("offer usage limit reached")

// OfferRepository is the store for offer definitions and redemptions.
// Offers themselves are maintained by the admin flow; this engine reads
// them and records redemptions.
type OfferRepository interface {
	Create(ctx context.Context, offer *offers.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*offers.Offer, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]offers.Offer, error)
	FindByCode(ctx context.Context, code string) (*offers.Offer, error)
	// FindAutoApplicable returns active codeless offers, highest priority first.
	FindAutoApplicable(ctx context.Context) ([]offers.Offer, error)
	FindAll(ctx context.Context, page, limit int) ([]offers.Offer, int64, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	CustomerUsageCount(ctx context.Context, offerID uuid.UUID, customerID string) (int, error)
	// RecordRedemption counts one application of the offer on an order.
	// Replaying the same (offer, order) pair never double-counts.
	RecordRedemption(ctx context.Context, offerID, orderID uuid.UUID, customerID string) error
}

// GormOfferRepository implements OfferRepository using GORM.
type GormOfferRepository struct {
	db *gorm.DB
}

// NewGormOfferRepository creates a new instance of GormOfferRepository.
func NewGormOfferRepository(db *gorm.DB) OfferRepository {
	return &GormOfferRepository{db: db}
}

func (r *GormOfferRepository) Create(ctx context.Context, offer *offers.Offer) error {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *GormOfferRepository) FindByID(ctx context.Context, id uuid.UUID) (*offers.Offer, error) {
	var offer offers.Offer
	if err := r.db.WithContext(ctx).First(&offer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *GormOfferRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]offers.Offer, error) {
	var result []offers.Offer
	if len(ids) == 0 {
		return result, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *GormOfferRepository) FindByCode(ctx context.Context, code string) (*offers.Offer, error) {
	var offer offers.Offer
	if err := r.db.WithContext(ctx).First(&offer, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *GormOfferRepository) FindAutoApplicable(ctx context.Context) ([]offers.Offer, error) {
	var result []offers.Offer
	if err := r.db.WithContext(ctx).
		Where("active = ? AND code = ''", true).
		Order("priority DESC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *GormOfferRepository) FindAll(ctx context.Context, page, limit int) ([]offers.Offer, int64, error) {
	var result []offers.Offer
	var total int64

	query := r.db.WithContext(ctx).Model(&offers.Offer{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&result).Error; err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *GormOfferRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&offers.Offer{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormOfferRepository) CustomerUsageCount(ctx context.Context, offerID uuid.UUID, customerID string) (int, error) {
	if customerID == "" {
		return 0, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&offers.Redemption{}).
		Where("offer_id = ? AND customer_id = ?", offerID, customerID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// RecordRedemption inserts the redemption row and increments the usage
// counter in one transaction. The insert and the guarded UPDATE together
// keep the counter exact under concurrent redemption and replay.
func (r *GormOfferRepository) RecordRedemption(ctx context.Context, offerID, orderID uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&offers.Redemption{
			OfferID:    offerID,
			OrderID:    orderID,
			CustomerID: customerID,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already counted for this order.
			return nil
		}

		upd := tx.Model(&offers.Offer{}).
			Where("id = ? AND (usage_limit = 0 OR usage_count < usage_limit)", offerID).
			UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return ErrUsageLimitReached
		}
		return nil
	})
}
