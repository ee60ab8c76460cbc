package events

// Type identifies a domain event variant on the wire and in the store.
type Type string

// Event is a domain event belonging to exactly one aggregate stream.
// The set of implementations is closed: every type is listed in the codec.
type Event interface {
	EventType() Type
}

// Session event types.
const (
	TypeSessionStarted        Type = "session.started"
	TypeItemsSearched         Type = "session.items_searched"
	TypeMenuBrowsed           Type = "session.menu_browsed"
	TypeItemAdded             Type = "session.item_added"
	TypeItemRemoved           Type = "session.item_removed"
	TypeItemQuantityChanged   Type = "session.item_quantity_changed"
	TypeServingTypeSet        Type = "session.serving_type_set"
	TypeCustomerInfoSet       Type = "session.customer_info_set"
	TypePaymentMethodSelected Type = "session.payment_method_selected"
	TypeDraftSaved            Type = "session.draft_saved"
	TypeSessionRecovered      Type = "session.recovered"
	TypeSessionConverted      Type = "session.converted"
	TypeSessionAbandoned      Type = "session.abandoned"
	TypeSessionFailed         Type = "session.failed"
)

// Order event types.
const (
	TypeOrderStarted          Type = "order.started"
	TypeOrderItemsAdded       Type = "order.items_added"
	TypeOrderItemsValidated   Type = "order.items_validated"
	TypePromotionsCalculated  Type = "order.promotions_calculated"
	TypePromotionApplied      Type = "order.promotion_applied"
	TypePromotionRemoved      Type = "order.promotion_removed"
	TypePriceCalculated       Type = "order.price_calculated"
	TypeTipAdded              Type = "order.tip_added"
	TypeOrderPaymentMethodSet Type = "order.payment_method_set"
	TypePriceAdjusted         Type = "order.price_adjusted"
	TypeOrderConfirmed        Type = "order.confirmed"
	TypePaymentProcessed      Type = "order.payment_processed"
	TypeOrderCompleted        Type = "order.completed"
	TypeOrderCancelled        Type = "order.cancelled"
	TypeOrderRefunded         Type = "order.refunded"
)
