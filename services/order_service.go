package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jpkontreras/cw-sub006/aggregates"
	"github.com/jpkontreras/cw-sub006/apperrors"
	"github.com/jpkontreras/cw-sub006/catalog"
	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/models"
	"github.com/jpkontreras/cw-sub006/offers"
	"github.com/jpkontreras/cw-sub006/repository"
)

// OrderConfig carries the pricing tunables of orders.
type OrderConfig struct {
	TaxRate          float64
	AuthThresholdPct float64
	CatalogTimeout   time.Duration
}

// OrderService handles order commands: item validation, promotion
// application, pricing and the confirm/complete/cancel/refund lifecycle.
type OrderService struct {
	store   eventstore.Store
	catalog catalog.Gateway
	offers  repository.OfferRepository
	views   repository.OrderViewRepository
	sink    EventSink
	cfg     OrderConfig
	logger  *zap.Logger
}

// NewOrderService creates the service.
func NewOrderService(store eventstore.Store, gw catalog.Gateway, offerRepo repository.OfferRepository, views repository.OrderViewRepository, sink EventSink, cfg OrderConfig, logger *zap.Logger) *OrderService {
	return &OrderService{store: store, catalog: gw, offers: offerRepo, views: views, sink: sink, cfg: cfg, logger: logger}
}

// exec runs one command against the order stream under the retry loop.
func (s *OrderService) exec(ctx context.Context, orderID uuid.UUID, fn func(*aggregates.Order) error) ([]eventstore.Envelope, error) {
	for attempt := 0; attempt < maxCommandRetries; attempt++ {
		stream, err := s.store.LoadStream(ctx, orderID, 0)
		if err != nil {
			return nil, apperrors.Internal("failed to load order stream", err)
		}

		order, err := aggregates.LoadOrder(orderID, stream)
		if err != nil {
			return nil, apperrors.Internal("failed to replay order", err)
		}
		if !order.Exists() {
			return nil, apperrors.NotFound("order not found")
		}
		if err := fn(order); err != nil {
			return nil, err
		}
		if len(order.Pending()) == 0 {
			return nil, nil
		}

		envs, err := s.store.Append(ctx, orderID, order.Version(), order.Pending())
		if err != nil {
			if errors.Is(err, eventstore.ErrConcurrencyConflict) {
				s.logger.Debug("Order append conflicted, retrying",
					zap.String("order_id", orderID.String()),
					zap.Int("attempt", attempt+1))
				continue
			}
			return nil, apperrors.Internal("failed to append order events", err)
		}

		s.publish(ctx, envs)
		return envs, nil
	}
	return nil, apperrors.ConcurrencyConflict("order was modified concurrently, please retry")
}

func (s *OrderService) publish(ctx context.Context, envs []eventstore.Envelope) {
	if s.sink != nil {
		_ = s.sink.Publish(ctx, envs)
	}
}

// StartOrder opens a direct order stream, not linked to any session.
// Converted orders are opened by the converter instead.
func (s *OrderService) StartOrder(ctx context.Context, locationID uuid.UUID, servingType, customer string) (uuid.UUID, error) {
	orderID := uuid.New()
	order := aggregates.NewOrder(orderID)
	if err := order.Start(uuid.Nil, locationID, servingType, customer, time.Now().UTC()); err != nil {
		return uuid.Nil, err
	}

	envs, err := s.store.Append(ctx, orderID, 0, order.Pending())
	if err != nil {
		return uuid.Nil, apperrors.Internal("failed to start order", err)
	}
	s.publish(ctx, envs)

	s.logger.Info("Order started",
		zap.String("order_id", orderID.String()),
		zap.String("location_id", locationID.String()))
	return orderID, nil
}

// OrderLineInput is one requested line, unpriced.
type OrderLineInput struct {
	ItemID      uuid.UUID
	VariantID   string
	Quantity    int
	ModifierIDs []uuid.UUID
	Notes       string
}

// AddItems prices the requested lines through the catalog and appends
// them. Adding items drops a validated order back to items_added.
func (s *OrderService) AddItems(ctx context.Context, orderID uuid.UUID, inputs []OrderLineInput) error {
	if len(inputs) == 0 {
		return apperrors.Validation("at least one line is required")
	}

	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		lines, err := s.priceLines(ctx, order.LocationID, inputs)
		if err != nil {
			return err
		}
		return order.AddItems(lines, time.Now().UTC())
	})
	return err
}

// ValidateItems re-prices every line on the order against the catalog and
// records the confirmed set. An unavailable item fails the whole command.
func (s *OrderService) ValidateItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.CatalogTimeout)
		defer cancel()

		validated := make([]events.OrderLine, 0, len(order.Lines))
		for _, l := range order.Lines {
			quote, err := s.catalog.GetPrice(cctx, l.ItemID, order.LocationID, "")
			if err != nil {
				return apperrors.CatalogUnavailable(err)
			}
			if !quote.Available {
				return apperrors.Validation(fmt.Sprintf("item %s is no longer available", l.ItemID))
			}
			l.UnitPrice = quote.Price
			validated = append(validated, l)
		}
		return order.ValidateItems(validated, time.Now().UTC())
	})
	return err
}

// CalculatePromotions evaluates every auto-applicable offer against the
// order, greedily keeps the stackable set in priority order and records
// it. The previous auto-applied set is replaced wholesale.
func (s *OrderService) CalculatePromotions(ctx context.Context, orderID uuid.UUID) error {
	candidates, err := s.offers.FindAutoApplicable(ctx)
	if err != nil {
		return apperrors.Internal("failed to load auto-applicable offers", err)
	}

	_, err = s.exec(ctx, orderID, func(order *aggregates.Order) error {
		snap := snapshotOrder(order)
		now := time.Now().UTC()

		var kept []offers.Offer
		for _, offer := range candidates {
			if len(offers.Validate(offer, snap, offers.ValidationInput{Now: now})) > 0 {
				continue
			}
			stackable := true
			for _, k := range kept {
				if ok, _ := offers.CanStack(k, offer); !ok {
					stackable = false
					break
				}
			}
			if !stackable {
				continue
			}
			kept = append(kept, offer)
			if !offer.IsStackable {
				break
			}
		}

		result := offers.CalculateStack(kept, snap)
		applied := make([]events.AppliedOffer, 0, len(result.Entries))
		for _, e := range result.Entries {
			if e.DiscountAmount <= 0 {
				continue
			}
			applied = append(applied, events.AppliedOffer{
				OfferID:        e.OfferID,
				OfferType:      string(e.OfferType),
				DiscountAmount: e.DiscountAmount,
				Auto:           true,
				Priority:       e.Priority,
			})
		}
		return order.CalculatePromotions(applied, now)
	})
	return err
}

// PromotionFailureError carries every eligibility rule an offer failed.
type PromotionFailureError struct {
	Failures []offers.RuleFailure
}

// Error implements the error interface.
func (e *PromotionFailureError) Error() string {
	if len(e.Failures) == 0 {
		return "offer is not applicable"
	}
	return e.Failures[0].Message
}

// ApplyPromotion validates a code-gated offer against the order and
// applies it. All failed rules are returned together so the client can
// show every reason at once. The redemption is counted after the append
// commits; replay of the same order never double-counts.
func (s *OrderService) ApplyPromotion(ctx context.Context, orderID uuid.UUID, code, customerID string) error {
	offer, err := s.offers.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("promotion code not found")
		}
		return apperrors.Internal("failed to load offer", err)
	}

	usage, err := s.offers.CustomerUsageCount(ctx, offer.ID, customerID)
	if err != nil {
		return apperrors.Internal("failed to load customer usage", err)
	}

	envs, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		snap := snapshotOrder(order)
		now := time.Now().UTC()

		failures := offers.Validate(*offer, snap, offers.ValidationInput{
			Now:                now,
			ProvidedCode:       code,
			CustomerUsageCount: usage,
		})
		if len(failures) > 0 {
			return &PromotionFailureError{Failures: failures}
		}

		applied, err := s.offers.FindByIDs(ctx, appliedOfferIDs(order))
		if err != nil {
			return apperrors.Internal("failed to load applied offers", err)
		}
		for _, a := range applied {
			if ok, reason := offers.CanStack(a, *offer); !ok {
				return apperrors.Validation(fmt.Sprintf("cannot combine with %s: %s", a.Name, reason))
			}
		}

		calc := offers.Calculate(*offer, snap)
		if calc.DiscountAmount <= 0 {
			return apperrors.Validation("offer yields no discount on this order")
		}
		return order.ApplyPromotion(events.AppliedOffer{
			OfferID:        offer.ID,
			OfferType:      string(offer.Type),
			DiscountAmount: calc.DiscountAmount,
			Priority:       offer.Priority,
		}, code, now)
	})
	if err != nil {
		return err
	}
	if len(envs) == 0 {
		return nil
	}

	if err := s.offers.RecordRedemption(ctx, offer.ID, orderID, customerID); err != nil {
		// The discount is already committed; counting must not undo it.
		s.logger.Error("Failed to record offer redemption",
			zap.String("offer_id", offer.ID.String()),
			zap.String("order_id", orderID.String()),
			zap.Error(err))
	}
	return nil
}

// RemovePromotion removes an applied offer from the order.
func (s *OrderService) RemovePromotion(ctx context.Context, orderID, offerID uuid.UUID) error {
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		return order.RemovePromotion(offerID, time.Now().UTC())
	})
	return err
}

// CalculatePrice snapshots the order totals at the configured tax rate.
func (s *OrderService) CalculatePrice(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		return order.CalculatePrice(s.cfg.TaxRate, time.Now().UTC())
	})
	return err
}

// AddTip records a tip on the order.
func (s *OrderService) AddTip(ctx context.Context, orderID uuid.UUID, amount float64, addedBy string) error {
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		return order.AddTip(amount, addedBy, time.Now().UTC())
	})
	return err
}

// SetPaymentMethod records the payment method on the order.
func (s *OrderService) SetPaymentMethod(ctx context.Context, orderID uuid.UUID, method string) error {
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		return order.SetPaymentMethod(method, time.Now().UTC())
	})
	return err
}

// AdjustPriceInput is a manual price change request.
type AdjustPriceInput struct {
	Type         string
	Amount       float64
	Reason       string
	AuthorizedBy string
	AuthCode     string
}

// AdjustPrice applies a manual discount, surcharge or correction.
// Corrections, and discounts above the configured share of the subtotal,
// are refused without an authorization code.
func (s *OrderService) AdjustPrice(ctx context.Context, orderID uuid.UUID, in AdjustPriceInput) error {
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		return order.AdjustPrice(in.Type, in.Amount, in.Reason, in.AuthorizedBy, in.AuthCode, s.cfg.AuthThresholdPct, time.Now().UTC())
	})
	return err
}

// Confirm assigns the order number and fixes the totals. At most one
// confirmation per order ever succeeds.
func (s *OrderService) Confirm(ctx context.Context, orderID uuid.UUID) (string, error) {
	var orderNumber string
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		orderNumber = generateOrderNumber(time.Now().UTC())
		return order.Confirm(orderNumber, time.Now().UTC())
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Order confirmed",
		zap.String("order_id", orderID.String()),
		zap.String("order_number", orderNumber))
	return orderNumber, nil
}

// ProcessPayment records the payment gateway result on a confirmed order.
func (s *OrderService) ProcessPayment(ctx context.Context, orderID uuid.UUID, status, reference string, amount float64) error {
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		return order.ProcessPayment(status, reference, amount, time.Now().UTC())
	})
	return err
}

// Complete closes the order successfully.
func (s *OrderService) Complete(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		return order.Complete(time.Now().UTC())
	})
	return err
}

// Cancel closes the order with a mandatory reason.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) error {
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		return order.Cancel(reason, time.Now().UTC())
	})
	return err
}

// Refund closes the order with a refund.
func (s *OrderService) Refund(ctx context.Context, orderID uuid.UUID, reason string, amount float64) error {
	_, err := s.exec(ctx, orderID, func(order *aggregates.Order) error {
		return order.Refund(reason, amount, time.Now().UTC())
	})
	return err
}

// GetOrder returns the order read model.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderView, error) {
	view, err := s.views.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order not found")
		}
		return nil, apperrors.Internal("failed to load order view", err)
	}
	return view, nil
}

// ListOrders returns order views, paginated.
func (s *OrderService) ListOrders(ctx context.Context, page, limit int) ([]models.OrderView, int64, error) {
	return s.views.FindAll(ctx, page, limit)
}

// History returns the recorded status transitions of an order.
func (s *OrderService) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	return s.views.HistoryByOrderID(ctx, orderID)
}

// priceLines resolves every requested line through the catalog.
func (s *OrderService) priceLines(ctx context.Context, locationID uuid.UUID, inputs []OrderLineInput) ([]events.OrderLine, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CatalogTimeout)
	defer cancel()

	lines := make([]events.OrderLine, 0, len(inputs))
	for _, in := range inputs {
		quote, err := s.catalog.GetPrice(cctx, in.ItemID, locationID, in.VariantID)
		if err != nil {
			return nil, apperrors.CatalogUnavailable(err)
		}
		if !quote.Available {
			return nil, apperrors.Validation(fmt.Sprintf("item %s is not available", in.ItemID))
		}

		var modifiers []events.ModifierSelection
		for _, id := range in.ModifierIDs {
			impact, err := s.catalog.GetModifierPriceImpact(cctx, []uuid.UUID{id})
			if err != nil {
				return nil, apperrors.CatalogUnavailable(err)
			}
			modifiers = append(modifiers, events.ModifierSelection{ModifierID: id, PriceImpact: impact})
		}

		lines = append(lines, events.OrderLine{
			LineItemID: uuid.New(),
			ItemID:     in.ItemID,
			UnitPrice:  quote.Price,
			Quantity:   in.Quantity,
			Modifiers:  modifiers,
			Notes:      in.Notes,
		})
	}
	return lines, nil
}

// snapshotOrder converts the aggregate's lines into the offer engine's
// immutable view.
func snapshotOrder(order *aggregates.Order) offers.OrderSnapshot {
	lines := make([]offers.SnapshotLine, 0, len(order.Lines))
	for _, l := range order.Lines {
		unit := l.UnitPrice
		for _, m := range l.Modifiers {
			unit += m.PriceImpact
		}
		lines = append(lines, offers.SnapshotLine{
			ItemID:    l.ItemID,
			UnitPrice: unit,
			Quantity:  l.Quantity,
		})
	}
	return offers.OrderSnapshot{
		LocationID: order.LocationID,
		CustomerID: order.Customer,
		Lines:      lines,
	}
}

func appliedOfferIDs(order *aggregates.Order) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(order.Applied))
	for _, a := range order.Applied {
		ids = append(ids, a.OfferID)
	}
	return ids
}

// generateOrderNumber builds a human-readable daily order number.
func generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), rand.Intn(10000))
}
