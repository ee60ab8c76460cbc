// Package offers holds the promotion model and the pure validation and
// calculation functions consulted by the order aggregate.
package offers

import (
	"time"

	"github.com/google/uuid"
)

// OfferType selects the discount algorithm.
type OfferType string

const (
	TypePercentage OfferType = "percentage"
	TypeFixed      OfferType = "fixed"
	TypeBuyXGetY   OfferType = "buy_x_get_y"
	TypeCombo      OfferType = "combo"
	TypeHappyHour  OfferType = "happy_hour"
	TypeLoyalty    OfferType = "loyalty"
	TypeStaff      OfferType = "staff"
)

// Tier is one step of a tiered (loyalty) discount.
type Tier struct {
	MinAmount    float64 `json:"min_amount"`
	DiscountType string  `json:"discount_type"` // "fixed" or "percentage"
	Value        float64 `json:"value"`
}

// Conditions carries the type-specific parameters of an offer.
type Conditions struct {
	MinOrderAmount     float64     `json:"min_order_amount,omitempty"`
	BuyQuantity        int         `json:"buy_quantity,omitempty"`
	GetQuantity        int         `json:"get_quantity,omitempty"`
	GetDiscountPercent float64     `json:"get_discount_percent,omitempty"`
	ComboItemIDs       []uuid.UUID `json:"combo_item_ids,omitempty"`
	ComboPrice         float64     `json:"combo_price,omitempty"`
	Tiers              []Tier      `json:"tiers,omitempty"`
}

// Offer is a discount rule. It is created and updated by the admin flow and
// consumed read-only here; only UsageCount changes on application, and that
// increment is done transactionally by the repository.
type Offer struct {
	ID                uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Code              string      `gorm:"uniqueIndex" json:"code"`
	Name              string      `json:"name"`
	Type              OfferType   `gorm:"type:varchar(20);not null" json:"type"`
	Value             float64     `json:"value"`
	Conditions        Conditions  `gorm:"serializer:json" json:"conditions"`
	MaxDiscount       float64     `json:"max_discount"`
	UsageLimit        int         `json:"usage_limit"`
	UsageCount        int         `json:"usage_count"`
	PerCustomerLimit  int         `json:"per_customer_limit"`
	ValidFrom         time.Time   `json:"valid_from"`
	ValidUntil        time.Time   `json:"valid_until"`
	StartTime         string      `json:"start_time,omitempty"` // "15:04", daily window
	EndTime           string      `json:"end_time,omitempty"`
	DaysOfWeek        []int       `gorm:"serializer:json" json:"days_of_week,omitempty"` // 0 = Sunday
	LocationIDs       []uuid.UUID `gorm:"serializer:json" json:"location_ids,omitempty"`
	TargetItemIDs     []uuid.UUID `gorm:"serializer:json" json:"target_item_ids,omitempty"`
	TargetCategoryIDs []uuid.UUID `gorm:"serializer:json" json:"target_category_ids,omitempty"`
	ExcludedItemIDs   []uuid.UUID `gorm:"serializer:json" json:"excluded_item_ids,omitempty"`
	IsStackable       bool        `json:"is_stackable"`
	Priority          int         `json:"priority"`
	Active            bool        `json:"active"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// SnapshotLine is one priced order line as seen by the offer engine.
type SnapshotLine struct {
	ItemID     uuid.UUID
	CategoryID uuid.UUID
	UnitPrice  float64
	Quantity   int
}

// OrderSnapshot is the immutable view of an order the validator and
// calculator work against.
type OrderSnapshot struct {
	LocationID uuid.UUID
	CustomerID string
	Lines      []SnapshotLine
}

// Amount returns the snapshot's full order amount.
func (s OrderSnapshot) Amount() float64 {
	var total float64
	for _, l := range s.Lines {
		total += l.UnitPrice * float64(l.Quantity)
	}
	return total
}

// targeted reports whether a line is inside the offer's target sets and not
// excluded. An offer with no target sets applies to every non-excluded line.
func (o Offer) targeted(l SnapshotLine) bool {
	for _, ex := range o.ExcludedItemIDs {
		if l.ItemID == ex {
			return false
		}
	}
	if len(o.TargetItemIDs) == 0 && len(o.TargetCategoryIDs) == 0 {
		return true
	}
	for _, id := range o.TargetItemIDs {
		if l.ItemID == id {
			return true
		}
	}
	for _, id := range o.TargetCategoryIDs {
		if l.CategoryID == id {
			return true
		}
	}
	return false
}

// eligibleAmount returns the amount of the snapshot the offer can touch.
func (o Offer) eligibleAmount(s OrderSnapshot) float64 {
	var total float64
	for _, l := range s.Lines {
		if o.targeted(l) {
			total += l.UnitPrice * float64(l.Quantity)
		}
	}
	return total
}

// eligibleItemIDs returns the distinct item ids the offer can touch.
func (o Offer) eligibleItemIDs(s OrderSnapshot) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, l := range s.Lines {
		if o.targeted(l) && !seen[l.ItemID] {
			seen[l.ItemID] = true
			ids = append(ids, l.ItemID)
		}
	}
	return ids
}
