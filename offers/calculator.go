package offers

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// CalcResult is the outcome of applying one offer to an order snapshot.
type CalcResult struct {
	DiscountAmount float64     `json:"discount_amount"`
	AffectedItems  []uuid.UUID `json:"affected_items,omitempty"`
	WasLimited     bool        `json:"was_limited"`
}

// Calculate computes the discount an offer yields on the snapshot. It is a
// pure function: same offer and snapshot always give the same result.
func Calculate(offer Offer, snap OrderSnapshot) CalcResult {
	switch offer.Type {
	case TypePercentage, TypeHappyHour, TypeStaff:
		return percentageDiscount(offer, offer.eligibleAmount(snap), offer.eligibleItemIDs(snap))
	case TypeFixed:
		amount := offer.eligibleAmount(snap)
		discount := math.Min(offer.Value, amount)
		return CalcResult{
			DiscountAmount: round2(discount),
			AffectedItems:  offer.eligibleItemIDs(snap),
			WasLimited:     discount < offer.Value,
		}
	case TypeBuyXGetY:
		return buyXGetY(offer, snap)
	case TypeCombo:
		return combo(offer, snap)
	case TypeLoyalty:
		return tiered(offer, snap)
	default:
		return CalcResult{}
	}
}

func percentageDiscount(offer Offer, amount float64, affected []uuid.UUID) CalcResult {
	discount := amount * offer.Value / 100
	limited := false
	if offer.MaxDiscount > 0 && discount > offer.MaxDiscount {
		discount = offer.MaxDiscount
		limited = true
	}
	return CalcResult{DiscountAmount: round2(discount), AffectedItems: affected, WasLimited: limited}
}

// buyXGetY groups eligible lines by item id, counts complete buy+get sets
// per group and discounts the cheapest get-units of each group.
func buyXGetY(offer Offer, snap OrderSnapshot) CalcResult {
	buy := offer.Conditions.BuyQuantity
	get := offer.Conditions.GetQuantity
	pct := offer.Conditions.GetDiscountPercent
	if buy <= 0 || get <= 0 || pct <= 0 {
		return CalcResult{}
	}

	type group struct {
		unitPrices []float64
	}
	groups := make(map[uuid.UUID]*group)
	var order []uuid.UUID
	for _, l := range snap.Lines {
		if !offer.targeted(l) {
			continue
		}
		g, ok := groups[l.ItemID]
		if !ok {
			g = &group{}
			groups[l.ItemID] = g
			order = append(order, l.ItemID)
		}
		for i := 0; i < l.Quantity; i++ {
			g.unitPrices = append(g.unitPrices, l.UnitPrice)
		}
	}

	var discount float64
	var affected []uuid.UUID
	for _, itemID := range order {
		g := groups[itemID]
		sets := len(g.unitPrices) / (buy + get)
		if sets == 0 {
			continue
		}
		units := sets * get
		sort.Float64s(g.unitPrices)
		for i := 0; i < units; i++ {
			discount += g.unitPrices[i] * pct / 100
		}
		affected = append(affected, itemID)
	}

	limited := false
	if offer.MaxDiscount > 0 && discount > offer.MaxDiscount {
		discount = offer.MaxDiscount
		limited = true
	}
	return CalcResult{DiscountAmount: round2(discount), AffectedItems: affected, WasLimited: limited}
}

// combo discounts the listed component set down to the combo price. All
// components must be present or the discount is zero.
func combo(offer Offer, snap OrderSnapshot) CalcResult {
	if len(offer.Conditions.ComboItemIDs) == 0 {
		return CalcResult{}
	}

	prices := make(map[uuid.UUID]float64)
	for _, l := range snap.Lines {
		if l.Quantity > 0 {
			if _, ok := prices[l.ItemID]; !ok {
				prices[l.ItemID] = l.UnitPrice
			}
		}
	}

	var sum float64
	for _, id := range offer.Conditions.ComboItemIDs {
		price, ok := prices[id]
		if !ok {
			return CalcResult{}
		}
		sum += price
	}

	discount := sum - offer.Conditions.ComboPrice
	if discount <= 0 {
		return CalcResult{}
	}
	limited := false
	if offer.MaxDiscount > 0 && discount > offer.MaxDiscount {
		discount = offer.MaxDiscount
		limited = true
	}
	return CalcResult{
		DiscountAmount: round2(discount),
		AffectedItems:  append([]uuid.UUID(nil), offer.Conditions.ComboItemIDs...),
		WasLimited:     limited,
	}
}

// tiered picks the highest qualifying minimum-amount tier and applies its
// fixed or percentage discount.
func tiered(offer Offer, snap OrderSnapshot) CalcResult {
	amount := offer.eligibleAmount(snap)
	tiers := append([]Tier(nil), offer.Conditions.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinAmount > tiers[j].MinAmount })

	for _, t := range tiers {
		if amount < t.MinAmount {
			continue
		}
		var discount float64
		switch t.DiscountType {
		case "percentage":
			discount = amount * t.Value / 100
		default:
			discount = math.Min(t.Value, amount)
		}
		limited := false
		if offer.MaxDiscount > 0 && discount > offer.MaxDiscount {
			discount = offer.MaxDiscount
			limited = true
		}
		return CalcResult{DiscountAmount: round2(discount), AffectedItems: offer.eligibleItemIDs(snap), WasLimited: limited}
	}
	return CalcResult{}
}

func containsUUID(xs []uuid.UUID, x uuid.UUID) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
