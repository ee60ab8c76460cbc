package events

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine is a priced line item on an order. UnitPrice is always the
// catalog-resolved price in effect when the line was added or validated.
type OrderLine struct {
	LineItemID uuid.UUID           `json:"line_item_id"`
	ItemID     uuid.UUID           `json:"item_id"`
	UnitPrice  float64             `json:"unit_price"`
	Quantity   int                 `json:"quantity"`
	Modifiers  []ModifierSelection `json:"modifiers,omitempty"`
	Notes      string              `json:"notes,omitempty"`
}

// AppliedOffer records one promotion applied to an order.
type AppliedOffer struct {
	OfferID        uuid.UUID `json:"offer_id"`
	OfferType      string    `json:"offer_type"`
	DiscountAmount float64   `json:"discount_amount"`
	Auto           bool      `json:"auto"`
	Priority       int       `json:"priority"`
}

// OrderStarted opens an order stream. SessionID links back to the session
// the order was converted from; it is Nil for direct (counter) orders.
type OrderStarted struct {
	OrderID     uuid.UUID `json:"order_id"`
	SessionID   uuid.UUID `json:"session_id,omitempty"`
	LocationID  uuid.UUID `json:"location_id"`
	ServingType string    `json:"serving_type,omitempty"`
	Customer    string    `json:"customer,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

func (OrderStarted) EventType() Type { return TypeOrderStarted }

// OrderItemsAdded appends lines to the order.
type OrderItemsAdded struct {
	Lines   []OrderLine `json:"lines"`
	AddedAt time.Time   `json:"added_at"`
}

func (OrderItemsAdded) EventType() Type { return TypeOrderItemsAdded }

// OrderItemsValidated carries the catalog-confirmed lines. Every line was
// re-priced and availability-checked in the same command that emitted this.
type OrderItemsValidated struct {
	Lines       []OrderLine `json:"lines"`
	ValidatedAt time.Time   `json:"validated_at"`
}

func (OrderItemsValidated) EventType() Type { return TypeOrderItemsValidated }

// PromotionsCalculated replaces the auto-applied offer set.
type PromotionsCalculated struct {
	Applied      []AppliedOffer `json:"applied"`
	CalculatedAt time.Time      `json:"calculated_at"`
}

func (PromotionsCalculated) EventType() Type { return TypePromotionsCalculated }

// PromotionApplied adds one manually applied offer.
type PromotionApplied struct {
	Offer     AppliedOffer `json:"offer"`
	Code      string       `json:"code,omitempty"`
	AppliedAt time.Time    `json:"applied_at"`
}

func (PromotionApplied) EventType() Type { return TypePromotionApplied }

// PromotionRemoved removes a previously applied offer.
type PromotionRemoved struct {
	OfferID   uuid.UUID `json:"offer_id"`
	RemovedAt time.Time `json:"removed_at"`
}

func (PromotionRemoved) EventType() Type { return TypePromotionRemoved }

// PriceCalculated snapshots the deterministic totals of the order.
type PriceCalculated struct {
	Subtotal     float64   `json:"subtotal"`
	Discount     float64   `json:"discount"`
	Tax          float64   `json:"tax"`
	Tip          float64   `json:"tip"`
	Total        float64   `json:"total"`
	CalculatedAt time.Time `json:"calculated_at"`
}

func (PriceCalculated) EventType() Type { return TypePriceCalculated }

// TipAdded records a tip amount.
type TipAdded struct {
	Amount  float64   `json:"amount"`
	AddedBy string    `json:"added_by,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

func (TipAdded) EventType() Type { return TypeTipAdded }

// OrderPaymentMethodSet records the payment method for the order.
type OrderPaymentMethodSet struct {
	Method string    `json:"method"`
	SetAt  time.Time `json:"set_at"`
}

func (OrderPaymentMethodSet) EventType() Type { return TypeOrderPaymentMethodSet }

// PriceAdjusted is a manual discount, surcharge or correction. Adjustments
// above the authorization threshold carry the approver's code.
type PriceAdjusted struct {
	AdjustmentType string    `json:"adjustment_type"`
	Amount         float64   `json:"amount"`
	Reason         string    `json:"reason"`
	AuthorizedBy   string    `json:"authorized_by,omitempty"`
	AuthCode       string    `json:"auth_code,omitempty"`
	AdjustedAt     time.Time `json:"adjusted_at"`
}

func (PriceAdjusted) EventType() Type { return TypePriceAdjusted }

// OrderConfirmed assigns the order number. Emitted at most once per order.
// Totals are snapshotted here so downstream consumers do not need to join
// against earlier events.
type OrderConfirmed struct {
	OrderNumber string    `json:"order_number"`
	Total       float64   `json:"total"`
	Discount    float64   `json:"discount"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

func (OrderConfirmed) EventType() Type { return TypeOrderConfirmed }

// PaymentProcessed records the payment gateway result.
type PaymentProcessed struct {
	Status      string    `json:"status"`
	Reference   string    `json:"reference,omitempty"`
	Amount      float64   `json:"amount"`
	ProcessedAt time.Time `json:"processed_at"`
}

func (PaymentProcessed) EventType() Type { return TypePaymentProcessed }

// OrderCompleted closes the order successfully.
type OrderCompleted struct {
	CompletedAt time.Time `json:"completed_at"`
}

func (OrderCompleted) EventType() Type { return TypeOrderCompleted }

// OrderCancelled closes the order with a mandatory reason.
type OrderCancelled struct {
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (OrderCancelled) EventType() Type { return TypeOrderCancelled }

// OrderRefunded closes the order with a refund and a mandatory reason.
type OrderRefunded struct {
	Reason     string    `json:"reason"`
	Amount     float64   `json:"amount"`
	RefundedAt time.Time `json:"refunded_at"`
}

func (OrderRefunded) EventType() Type { return TypeOrderRefunded }
