package offers

import (
	"time"

	"github.com/google/uuid"
)

// Redemption records one successful application of an offer to an order.
// The unique index on (offer_id, order_id) is what prevents double-counting
// usage under concurrent redemption.
type Redemption struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	OfferID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_redemption,priority:1" json:"offer_id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_redemption,priority:2" json:"order_id"`
	CustomerID string    `gorm:"index" json:"customer_id,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
