package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jpkontreras/cw-sub006/apperrors"
	"github.com/jpkontreras/cw-sub006/offers"
	"github.com/jpkontreras/cw-sub006/repository"
)

// OfferService maintains offer definitions and answers preview
// validation queries. Application to orders happens in OrderService.
type OfferService struct {
	repo   repository.OfferRepository
	logger *zap.Logger
}

// NewOfferService creates the service.
func NewOfferService(repo repository.OfferRepository, logger *zap.Logger) *OfferService {
	return &OfferService{repo: repo, logger: logger}
}

// Create validates and stores a new offer definition.
func (s *OfferService) Create(ctx context.Context, offer *offers.Offer) error {
	if offer.Name == "" {
		return apperrors.Validation("offer name is required")
	}
	switch offer.Type {
	case offers.TypePercentage, offers.TypeHappyHour, offers.TypeStaff:
		if offer.Value <= 0 || offer.Value > 100 {
			return apperrors.Validation("percentage value must be between 0 and 100")
		}
	case offers.TypeFixed:
		if offer.Value <= 0 {
			return apperrors.Validation("fixed discount must be positive")
		}
	case offers.TypeBuyXGetY:
		c := offer.Conditions
		if c.BuyQuantity <= 0 || c.GetQuantity <= 0 || c.GetDiscountPercent <= 0 || c.GetDiscountPercent > 100 {
			return apperrors.Validation("buy-x-get-y requires buy and get quantities and a discount percent")
		}
	case offers.TypeCombo:
		if len(offer.Conditions.ComboItemIDs) < 2 || offer.Conditions.ComboPrice <= 0 {
			return apperrors.Validation("combo requires at least two items and a combo price")
		}
	case offers.TypeLoyalty:
		if len(offer.Conditions.Tiers) == 0 {
			return apperrors.Validation("loyalty offer requires at least one tier")
		}
	default:
		return apperrors.Validation("unknown offer type")
	}
	if !offer.ValidFrom.IsZero() && !offer.ValidUntil.IsZero() && offer.ValidUntil.Before(offer.ValidFrom) {
		return apperrors.Validation("validity window ends before it starts")
	}

	if err := s.repo.Create(ctx, offer); err != nil {
		return apperrors.Internal("failed to create offer", err)
	}
	s.logger.Info("Offer created",
		zap.String("offer_id", offer.ID.String()),
		zap.String("type", string(offer.Type)),
		zap.String("code", offer.Code))
	return nil
}

// Get returns one offer definition.
func (s *OfferService) Get(ctx context.Context, id uuid.UUID) (*offers.Offer, error) {
	offer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("offer not found")
		}
		return nil, apperrors.Internal("failed to load offer", err)
	}
	return offer, nil
}

// List returns offer definitions, paginated.
func (s *OfferService) List(ctx context.Context, page, limit int) ([]offers.Offer, int64, error) {
	result, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list offers", err)
	}
	return result, total, nil
}

// Deactivate retires an offer. Orders it is already applied to keep
// their discount.
func (s *OfferService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("offer not found")
		}
		return apperrors.Internal("failed to deactivate offer", err)
	}
	return nil
}

// PreviewResult is a dry-run of one offer against an order snapshot.
type PreviewResult struct {
	Applicable bool                 `json:"applicable"`
	Failures   []offers.RuleFailure `json:"failures,omitempty"`
	Discount   float64              `json:"discount"`
}

// Preview checks a code against a snapshot without touching any order.
// Clients use it to show eligibility before checkout.
func (s *OfferService) Preview(ctx context.Context, code, customerID string, snap offers.OrderSnapshot) (*PreviewResult, error) {
	offer, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("promotion code not found")
		}
		return nil, apperrors.Internal("failed to load offer", err)
	}

	usage, err := s.repo.CustomerUsageCount(ctx, offer.ID, customerID)
	if err != nil {
		return nil, apperrors.Internal("failed to load customer usage", err)
	}

	failures := offers.Validate(*offer, snap, offers.ValidationInput{
		Now:                time.Now().UTC(),
		ProvidedCode:       code,
		CustomerUsageCount: usage,
	})
	if len(failures) > 0 {
		return &PreviewResult{Applicable: false, Failures: failures}, nil
	}

	calc := offers.Calculate(*offer, snap)
	return &PreviewResult{Applicable: true, Discount: calc.DiscountAmount}, nil
}
