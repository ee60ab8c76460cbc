package projections

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jpkontreras/cw-sub006/aggregates"
	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/models"
	"github.com/jpkontreras/cw-sub006/repository"
)

// OrderProjector maintains the order read model and the status history
// table. The view row for an order cancelled before it was ever confirmed
// is removed: that is the footprint of a compensated conversion and must
// not stay visible to clients.
type OrderProjector struct {
	views  repository.OrderViewRepository
	store  eventstore.Store
	logger *zap.Logger
}

// NewOrderProjector creates the projector. It reads the order's own stream
// to rebuild derived totals, which keeps the view exactly as deterministic
// as the aggregate.
func NewOrderProjector(views repository.OrderViewRepository, store eventstore.Store, logger *zap.Logger) *OrderProjector {
	return &OrderProjector{views: views, store: store, logger: logger}
}

// Name implements Projector.
func (p *OrderProjector) Name() string { return "order_view" }

// Handles implements Projector.
func (p *OrderProjector) Handles(t events.Type) bool {
	switch t {
	case events.TypeOrderStarted, events.TypeOrderItemsAdded, events.TypeOrderItemsValidated,
		events.TypePromotionsCalculated, events.TypePromotionApplied, events.TypePromotionRemoved,
		events.TypePriceCalculated, events.TypeTipAdded, events.TypeOrderPaymentMethodSet,
		events.TypePriceAdjusted, events.TypeOrderConfirmed, events.TypePaymentProcessed,
		events.TypeOrderCompleted, events.TypeOrderCancelled, events.TypeOrderRefunded:
		return true
	}
	return false
}

// Apply implements Projector.
func (p *OrderProjector) Apply(ctx context.Context, env eventstore.Envelope) error {
	envs, err := p.store.LoadStream(ctx, env.AggregateID, 0)
	if err != nil {
		return err
	}
	// The stream may not yet contain this envelope's sequence when the
	// feed outruns a read replica; in-process dispatch always sees it.
	var upto []eventstore.Envelope
	for _, e := range envs {
		if e.Sequence <= env.Sequence {
			upto = append(upto, e)
		}
	}
	if len(upto) == 0 || upto[len(upto)-1].Sequence < env.Sequence {
		return fmt.Errorf("order projector: stream behind delivered sequence %d", env.Sequence)
	}

	order, err := aggregates.LoadOrder(env.AggregateID, upto)
	if err != nil {
		return err
	}

	if statusChanging(env.Type) {
		if err := p.views.AppendHistory(ctx, &models.OrderStatusHistory{
			OrderID:    env.AggregateID,
			Sequence:   env.Sequence,
			Status:     string(order.Status),
			OccurredAt: env.OccurredAt,
		}); err != nil {
			return err
		}
	}

	// A cancellation before confirmation is a compensated conversion (or
	// an abandoned draft order); drop the row instead of showing it.
	if order.Status == aggregates.OrderCancelled && order.OrderNumber == "" {
		if err := p.views.Delete(ctx, env.AggregateID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return nil
	}

	view := buildOrderView(order, env.Sequence)
	return p.views.Upsert(ctx, view)
}

func statusChanging(t events.Type) bool {
	switch t {
	case events.TypeOrderStarted, events.TypeOrderItemsAdded, events.TypeOrderItemsValidated,
		events.TypePromotionsCalculated, events.TypePriceCalculated, events.TypeOrderConfirmed,
		events.TypeOrderCompleted, events.TypeOrderCancelled, events.TypeOrderRefunded:
		return true
	}
	return false
}

func buildOrderView(order *aggregates.Order, lastSequence int64) *models.OrderView {
	lines := make([]models.ViewLine, 0, len(order.Lines))
	for _, l := range order.Lines {
		var modifiers float64
		for _, m := range l.Modifiers {
			modifiers += m.PriceImpact
		}
		lines = append(lines, models.ViewLine{
			LineItemID: l.LineItemID,
			ItemID:     l.ItemID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			Modifiers:  modifiers,
			Notes:      l.Notes,
		})
	}

	view := &models.OrderView{
		ID:            order.ID(),
		OrderNumber:   order.OrderNumber,
		LocationID:    order.LocationID,
		Status:        string(order.Status),
		Customer:      order.Customer,
		ServingType:   order.ServingType,
		Lines:         lines,
		Subtotal:      order.Subtotal,
		Discount:      order.Discount,
		Tax:           order.Tax,
		Tip:           order.TipAmount,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		LastSequence:  lastSequence,
	}
	if order.SessionID != uuid.Nil {
		sessionID := order.SessionID
		view.SessionID = &sessionID
	}
	return view
}
