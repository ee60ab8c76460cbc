package aggregates

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/jpkontreras/cw-sub006/apperrors"
	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
)

// OrderStatus is the lifecycle state of a confirmed-order aggregate.
type OrderStatus string

const (
	OrderStarted              OrderStatus = "started"
	OrderItemsAdded           OrderStatus = "items_added"
	OrderItemsValidated       OrderStatus = "items_validated"
	OrderPromotionsCalculated OrderStatus = "promotions_calculated"
	OrderPriceCalculated      OrderStatus = "price_calculated"
	OrderConfirmed            OrderStatus = "confirmed"
	OrderCompleted            OrderStatus = "completed"
	OrderCancelled            OrderStatus = "cancelled"
	OrderRefunded             OrderStatus = "refunded"
)

// Adjustment kinds for PriceAdjusted events.
const (
	AdjustmentDiscount   = "discount"
	AdjustmentSurcharge  = "surcharge"
	AdjustmentCorrection = "correction"
)

// PriceAdjustment is a recorded manual price change.
type PriceAdjustment struct {
	Type     string
	Amount   float64
	Reason   string
	AuthCode string
}

// Order is the event-sourced order aggregate. Totals are derived fields,
// recomputed from lines, offers, adjustments and tip on every applied event,
// never patched directly.
type Order struct {
	base

	Status        OrderStatus
	SessionID     uuid.UUID
	LocationID    uuid.UUID
	ServingType   string
	Customer      string
	OrderNumber   string
	Lines         []events.OrderLine
	Applied       []events.AppliedOffer
	Adjustments   []PriceAdjustment
	PaymentMethod string
	PaymentStatus string
	TipAmount     float64

	Subtotal float64
	Discount float64
	Tax      float64
	Total    float64
}

// NewOrder returns an empty order aggregate for id.
func NewOrder(id uuid.UUID) *Order {
	return &Order{base: base{id: id}}
}

// LoadOrder rebuilds an order from its committed stream.
func LoadOrder(id uuid.UUID, envs []eventstore.Envelope) (*Order, error) {
	o := NewOrder(id)
	if err := replay(o, &o.base, envs); err != nil {
		return nil, err
	}
	return o, nil
}

// Exists reports whether the order has any committed or pending history.
func (o *Order) Exists() bool {
	return o.version > 0 || len(o.pending) > 0
}

// Terminal reports whether the order can never change again.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderCompleted, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

func (o *Order) raise(evt events.Event) error {
	if err := o.apply(evt); err != nil {
		return err
	}
	o.record(evt)
	return nil
}

func (o *Order) guardMutable() error {
	if o.Terminal() {
		return apperrors.AlreadyTerminal(fmt.Sprintf("order is %s", o.Status))
	}
	return nil
}

func (o *Order) guardOpen() error {
	if err := o.guardMutable(); err != nil {
		return err
	}
	if o.Status == OrderConfirmed {
		return apperrors.Validation("order is already confirmed")
	}
	return nil
}

// Start opens the order stream.
func (o *Order) Start(sessionID, locationID uuid.UUID, servingType, customer string, now time.Time) error {
	if o.Status != "" {
		return apperrors.Validation("order is already started")
	}
	if locationID == uuid.Nil {
		return apperrors.Validation("location is required")
	}
	return o.raise(&events.OrderStarted{
		OrderID:     o.id,
		SessionID:   sessionID,
		LocationID:  locationID,
		ServingType: servingType,
		Customer:    customer,
		StartedAt:   now,
	})
}

// AddItems appends priced lines. Adding items after validation drops the
// order back to items_added so it must be re-validated.
func (o *Order) AddItems(lines []events.OrderLine, now time.Time) error {
	if err := o.guardOpen(); err != nil {
		return err
	}
	if o.Status == "" {
		return apperrors.Validation("order is not started")
	}
	if len(lines) == 0 {
		return apperrors.Validation("at least one line is required")
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return apperrors.Validation("line quantity must be positive")
		}
		if l.UnitPrice < 0 {
			return apperrors.Validation("line price cannot be negative")
		}
	}
	return o.raise(&events.OrderItemsAdded{Lines: lines, AddedAt: now})
}

// ValidateItems replaces the order lines with the catalog-confirmed set.
func (o *Order) ValidateItems(lines []events.OrderLine, now time.Time) error {
	if err := o.guardOpen(); err != nil {
		return err
	}
	if o.Status != OrderItemsAdded && o.Status != OrderItemsValidated {
		return apperrors.Validation(fmt.Sprintf("cannot validate items while %s", o.Status))
	}
	if len(lines) == 0 {
		return apperrors.Validation("no lines to validate")
	}
	return o.raise(&events.OrderItemsValidated{Lines: lines, ValidatedAt: now})
}

// CalculatePromotions replaces the auto-applied offer set.
func (o *Order) CalculatePromotions(applied []events.AppliedOffer, now time.Time) error {
	if err := o.guardOpen(); err != nil {
		return err
	}
	if o.Status != OrderItemsValidated && o.Status != OrderPromotionsCalculated && o.Status != OrderPriceCalculated {
		return apperrors.Validation(fmt.Sprintf("cannot calculate promotions while %s", o.Status))
	}
	return o.raise(&events.PromotionsCalculated{Applied: applied, CalculatedAt: now})
}

// ApplyPromotion adds one manually applied offer. Stackability against the
// already applied set is the caller's responsibility; the aggregate only
// rejects duplicates.
func (o *Order) ApplyPromotion(offer events.AppliedOffer, code string, now time.Time) error {
	if err := o.guardOpen(); err != nil {
		return err
	}
	if o.Status != OrderItemsValidated && o.Status != OrderPromotionsCalculated && o.Status != OrderPriceCalculated {
		return apperrors.Validation(fmt.Sprintf("cannot apply promotions while %s", o.Status))
	}
	for _, a := range o.Applied {
		if a.OfferID == offer.OfferID {
			return apperrors.Validation("offer is already applied")
		}
	}
	return o.raise(&events.PromotionApplied{Offer: offer, Code: code, AppliedAt: now})
}

// RemovePromotion removes an applied offer.
func (o *Order) RemovePromotion(offerID uuid.UUID, now time.Time) error {
	if err := o.guardOpen(); err != nil {
		return err
	}
	found := false
	for _, a := range o.Applied {
		if a.OfferID == offerID {
			found = true
			break
		}
	}
	if !found {
		return apperrors.Validation("offer is not applied to this order")
	}
	return o.raise(&events.PromotionRemoved{OfferID: offerID, RemovedAt: now})
}

// CalculatePrice emits the deterministic totals snapshot. Recomputing from
// the same lines and offers always yields the same event.
func (o *Order) CalculatePrice(taxRate float64, now time.Time) error {
	if err := o.guardOpen(); err != nil {
		return err
	}
	if o.Status != OrderItemsValidated && o.Status != OrderPromotionsCalculated && o.Status != OrderPriceCalculated {
		return apperrors.Validation(fmt.Sprintf("cannot calculate price while %s", o.Status))
	}
	subtotal := o.linesSubtotal()
	discount := o.discountTotal()
	taxable := subtotal - discount
	if taxable < 0 {
		taxable = 0
	}
	tax := round2(taxable * taxRate)
	total := round2(subtotal - discount + tax + o.TipAmount)
	return o.raise(&events.PriceCalculated{
		Subtotal:     round2(subtotal),
		Discount:     round2(discount),
		Tax:          tax,
		Tip:          o.TipAmount,
		Total:        total,
		CalculatedAt: now,
	})
}

// AddTip records a tip.
func (o *Order) AddTip(amount float64, addedBy string, now time.Time) error {
	if err := o.guardMutable(); err != nil {
		return err
	}
	if amount <= 0 {
		return apperrors.Validation("tip must be positive")
	}
	return o.raise(&events.TipAdded{Amount: amount, AddedBy: addedBy, AddedAt: now})
}

// SetPaymentMethod records the payment method.
func (o *Order) SetPaymentMethod(method string, now time.Time) error {
	if err := o.guardMutable(); err != nil {
		return err
	}
	if method == "" {
		return apperrors.Validation("payment method is required")
	}
	return o.raise(&events.OrderPaymentMethodSet{Method: method, SetAt: now})
}

// AdjustPrice applies a manual discount, surcharge or correction. A
// correction, or a discount above authThresholdPct of the subtotal, needs an
// authorization code.
func (o *Order) AdjustPrice(kind string, amount float64, reason, authorizedBy, authCode string, authThresholdPct float64, now time.Time) error {
	if err := o.guardMutable(); err != nil {
		return err
	}
	switch kind {
	case AdjustmentDiscount, AdjustmentSurcharge, AdjustmentCorrection:
	default:
		return apperrors.Validation(fmt.Sprintf("unknown adjustment type %q", kind))
	}
	if reason == "" {
		return apperrors.Validation("adjustment reason is required")
	}
	needsAuth := kind == AdjustmentCorrection
	if kind == AdjustmentDiscount && o.Subtotal > 0 && amount/o.Subtotal*100 > authThresholdPct {
		needsAuth = true
	}
	if needsAuth && authCode == "" {
		return apperrors.RequiresAuthorization("adjustment requires an authorization code")
	}
	return o.raise(&events.PriceAdjusted{
		AdjustmentType: kind,
		Amount:         amount,
		Reason:         reason,
		AuthorizedBy:   authorizedBy,
		AuthCode:       authCode,
		AdjustedAt:     now,
	})
}

// Confirm assigns the order number, exactly once.
func (o *Order) Confirm(orderNumber string, now time.Time) error {
	if err := o.guardMutable(); err != nil {
		return err
	}
	if o.OrderNumber != "" {
		return apperrors.Validation("order is already confirmed")
	}
	if o.Status != OrderPriceCalculated {
		return apperrors.Validation(fmt.Sprintf("cannot confirm while %s", o.Status))
	}
	if orderNumber == "" {
		return apperrors.Validation("order number is required")
	}
	return o.raise(&events.OrderConfirmed{
		OrderNumber: orderNumber,
		Total:       o.Total,
		Discount:    o.Discount,
		ConfirmedAt: now,
	})
}

// ProcessPayment records the payment gateway result.
func (o *Order) ProcessPayment(status, reference string, amount float64, now time.Time) error {
	if err := o.guardMutable(); err != nil {
		return err
	}
	if o.Status != OrderConfirmed {
		return apperrors.Validation(fmt.Sprintf("cannot process payment while %s", o.Status))
	}
	if status == "" {
		return apperrors.Validation("payment status is required")
	}
	return o.raise(&events.PaymentProcessed{Status: status, Reference: reference, Amount: amount, ProcessedAt: now})
}

// Complete closes the order successfully.
func (o *Order) Complete(now time.Time) error {
	if err := o.guardMutable(); err != nil {
		return err
	}
	if o.Status != OrderConfirmed {
		return apperrors.Validation(fmt.Sprintf("cannot complete while %s", o.Status))
	}
	return o.raise(&events.OrderCompleted{CompletedAt: now})
}

// Cancel closes the order with a mandatory reason.
func (o *Order) Cancel(reason string, now time.Time) error {
	if err := o.guardMutable(); err != nil {
		return err
	}
	if reason == "" {
		return apperrors.Validation("cancellation reason is required")
	}
	return o.raise(&events.OrderCancelled{Reason: reason, CancelledAt: now})
}

// Refund closes the order with a refund and a mandatory reason.
func (o *Order) Refund(reason string, amount float64, now time.Time) error {
	if err := o.guardMutable(); err != nil {
		return err
	}
	if o.Status != OrderConfirmed {
		return apperrors.Validation(fmt.Sprintf("cannot refund while %s", o.Status))
	}
	if reason == "" {
		return apperrors.Validation("refund reason is required")
	}
	if amount <= 0 {
		return apperrors.Validation("refund amount must be positive")
	}
	return o.raise(&events.OrderRefunded{Reason: reason, Amount: amount, RefundedAt: now})
}

func (o *Order) linesSubtotal() float64 {
	var subtotal float64
	for _, l := range o.Lines {
		unit := l.UnitPrice
		for _, m := range l.Modifiers {
			unit += m.PriceImpact
		}
		subtotal += unit * float64(l.Quantity)
	}
	return subtotal
}

func (o *Order) discountTotal() float64 {
	var discount float64
	for _, a := range o.Applied {
		discount += a.DiscountAmount
	}
	for _, adj := range o.Adjustments {
		switch adj.Type {
		case AdjustmentDiscount:
			discount += adj.Amount
		case AdjustmentSurcharge:
			discount -= adj.Amount
		case AdjustmentCorrection:
			discount -= adj.Amount
		}
	}
	return discount
}

// recompute re-derives all money fields from current state. Tax stays at
// its last calculated value until the next CalculatePrice.
func (o *Order) recompute() {
	o.Subtotal = round2(o.linesSubtotal())
	o.Discount = round2(o.discountTotal())
	o.Total = round2(o.Subtotal - o.Discount + o.Tax + o.TipAmount)
}

func (o *Order) apply(evt events.Event) error {
	switch e := evt.(type) {
	case *events.OrderStarted:
		o.Status = OrderStarted
		o.SessionID = e.SessionID
		o.LocationID = e.LocationID
		o.ServingType = e.ServingType
		o.Customer = e.Customer
	case *events.OrderItemsAdded:
		o.Lines = append(o.Lines, e.Lines...)
		o.Status = OrderItemsAdded
	case *events.OrderItemsValidated:
		o.Lines = e.Lines
		o.Status = OrderItemsValidated
	case *events.PromotionsCalculated:
		manual := make([]events.AppliedOffer, 0, len(o.Applied))
		for _, a := range o.Applied {
			if !a.Auto {
				manual = append(manual, a)
			}
		}
		o.Applied = append(e.Applied, manual...)
		o.Status = OrderPromotionsCalculated
	case *events.PromotionApplied:
		o.Applied = append(o.Applied, e.Offer)
		if o.Status == OrderItemsValidated {
			o.Status = OrderPromotionsCalculated
		}
	case *events.PromotionRemoved:
		kept := o.Applied[:0]
		for _, a := range o.Applied {
			if a.OfferID != e.OfferID {
				kept = append(kept, a)
			}
		}
		o.Applied = kept
	case *events.PriceCalculated:
		o.Tax = e.Tax
		o.Status = OrderPriceCalculated
	case *events.TipAdded:
		o.TipAmount = e.Amount
	case *events.OrderPaymentMethodSet:
		o.PaymentMethod = e.Method
	case *events.PriceAdjusted:
		o.Adjustments = append(o.Adjustments, PriceAdjustment{
			Type:     e.AdjustmentType,
			Amount:   e.Amount,
			Reason:   e.Reason,
			AuthCode: e.AuthCode,
		})
	case *events.OrderConfirmed:
		o.OrderNumber = e.OrderNumber
		o.Status = OrderConfirmed
	case *events.PaymentProcessed:
		o.PaymentStatus = e.Status
	case *events.OrderCompleted:
		o.Status = OrderCompleted
	case *events.OrderCancelled:
		o.Status = OrderCancelled
	case *events.OrderRefunded:
		o.Status = OrderRefunded
		o.PaymentStatus = "refunded"
	default:
		return fmt.Errorf("order: unexpected event %T", evt)
	}
	o.recompute()
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
