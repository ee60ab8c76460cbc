package offers

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// StackEntry is one offer's contribution inside a stacked application.
type StackEntry struct {
	OfferID        uuid.UUID `json:"offer_id"`
	OfferType      OfferType `json:"offer_type"`
	Priority       int       `json:"priority"`
	DiscountAmount float64   `json:"discount_amount"`
	WasLimited     bool      `json:"was_limited"`
}

// StackResult is the outcome of applying a set of offers in stack order.
type StackResult struct {
	Entries       []StackEntry `json:"entries"`
	TotalDiscount float64      `json:"total_discount"`
}

// itemBased offers discount specific units; they are mutually exclusive with
// each other when stacking.
func itemBased(t OfferType) bool {
	return t == TypeBuyXGetY || t == TypeCombo
}

// CanStack reports whether two offers may be combined on one order, with the
// failing rule when they cannot.
func CanStack(a, b Offer) (bool, string) {
	if !a.IsStackable || !b.IsStackable {
		return false, "both offers must be stackable"
	}
	if itemBased(a.Type) && itemBased(b.Type) {
		return false, "buy-x-get-y and combo offers cannot be combined"
	}
	for _, ida := range a.TargetItemIDs {
		if containsUUID(b.TargetItemIDs, ida) {
			return false, "offers target the same items"
		}
	}
	for _, ida := range a.TargetCategoryIDs {
		if containsUUID(b.TargetCategoryIDs, ida) {
			return false, "offers target the same categories"
		}
	}
	return true, ""
}

// CalculateStack applies offers in descending priority order, computing each
// discount against the amount remaining after the prior offers. The order of
// application changes the result, so it is fixed here and nowhere else.
func CalculateStack(offerSet []Offer, snap OrderSnapshot) StackResult {
	sorted := append([]Offer(nil), offerSet...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	remaining := snap.Amount()
	var result StackResult
	for _, offer := range sorted {
		if remaining <= 0 {
			break
		}

		var discount float64
		var limited bool
		switch offer.Type {
		case TypePercentage, TypeHappyHour, TypeStaff:
			discount = remaining * offer.Value / 100
			if offer.MaxDiscount > 0 && discount > offer.MaxDiscount {
				discount = offer.MaxDiscount
				limited = true
			}
		case TypeFixed:
			discount = math.Min(offer.Value, remaining)
			limited = discount < offer.Value
		default:
			// Item-based and tiered offers price specific units; their own
			// result is capped by what is left on the order.
			calc := Calculate(offer, snap)
			discount = math.Min(calc.DiscountAmount, remaining)
			limited = calc.WasLimited || discount < calc.DiscountAmount
		}

		discount = round2(discount)
		result.Entries = append(result.Entries, StackEntry{
			OfferID:        offer.ID,
			OfferType:      offer.Type,
			Priority:       offer.Priority,
			DiscountAmount: discount,
			WasLimited:     limited,
		})
		result.TotalDiscount = round2(result.TotalDiscount + discount)
		remaining = round2(remaining - discount)
	}
	return result
}
