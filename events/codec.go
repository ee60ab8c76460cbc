package events

import (
	"encoding/json"
	"fmt"
)

// Marshal serializes an event payload for storage.
func Marshal(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.EventType(), err)
	}
	return data, nil
}

// Unmarshal decodes a stored payload back into its concrete event type.
// Unknown types are an error: the variant set is closed and a type this
// switch does not know means a corrupt or incompatible stream.
func Unmarshal(t Type, payload []byte) (Event, error) {
	var e Event
	switch t {
	case TypeSessionStarted:
		e = &SessionStarted{}
	case TypeItemsSearched:
		e = &ItemsSearched{}
	case TypeMenuBrowsed:
		e = &MenuBrowsed{}
	case TypeItemAdded:
		e = &ItemAdded{}
	case TypeItemRemoved:
		e = &ItemRemoved{}
	case TypeItemQuantityChanged:
		e = &ItemQuantityChanged{}
	case TypeServingTypeSet:
		e = &ServingTypeSet{}
	case TypeCustomerInfoSet:
		e = &CustomerInfoSet{}
	case TypePaymentMethodSelected:
		e = &PaymentMethodSelected{}
	case TypeDraftSaved:
		e = &DraftSaved{}
	case TypeSessionRecovered:
		e = &SessionRecovered{}
	case TypeSessionConverted:
		e = &SessionConverted{}
	case TypeSessionAbandoned:
		e = &SessionAbandoned{}
	case TypeSessionFailed:
		e = &SessionFailed{}
	case TypeOrderStarted:
		e = &OrderStarted{}
	case TypeOrderItemsAdded:
		e = &OrderItemsAdded{}
	case TypeOrderItemsValidated:
		e = &OrderItemsValidated{}
	case TypePromotionsCalculated:
		e = &PromotionsCalculated{}
	case TypePromotionApplied:
		e = &PromotionApplied{}
	case TypePromotionRemoved:
		e = &PromotionRemoved{}
	case TypePriceCalculated:
		e = &PriceCalculated{}
	case TypeTipAdded:
		e = &TipAdded{}
	case TypeOrderPaymentMethodSet:
		e = &OrderPaymentMethodSet{}
	case TypePriceAdjusted:
		e = &PriceAdjusted{}
	case TypeOrderConfirmed:
		e = &OrderConfirmed{}
	case TypePaymentProcessed:
		e = &PaymentProcessed{}
	case TypeOrderCompleted:
		e = &OrderCompleted{}
	case TypeOrderCancelled:
		e = &OrderCancelled{}
	case TypeOrderRefunded:
		e = &OrderRefunded{}
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}

	if err := json.Unmarshal(payload, e); err != nil {
		return nil, fmt.Errorf("unmarshal event %s: %w", t, err)
	}
	return e, nil
}
