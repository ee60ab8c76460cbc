package models

import (
	"time"

	"github.com/google/uuid"
)

// ViewLine is one cart or order line as shown to clients.
type ViewLine struct {
	LineItemID uuid.UUID `json:"line_item_id,omitempty"`
	ItemID     uuid.UUID `json:"item_id"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	Modifiers  float64   `json:"modifiers_amount,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

// SessionView is the read model of an order session. It is a disposable
// cache: the event stream is the source of truth and this row can be
// rebuilt from it at any time. LastSequence is the freshness indicator.
type SessionView struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Status         string     `gorm:"type:varchar(20);not null;index" json:"status"`
	LocationID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"location_id"`
	CustomerID     string     `json:"customer_id,omitempty"`
	Lines          []ViewLine `gorm:"serializer:json" json:"lines"`
	CartTotal      float64    `json:"cart_total"`
	CustomerName   string     `json:"customer_name,omitempty"`
	CustomerPhone  string     `json:"customer_phone,omitempty"`
	CustomerEmail  string     `json:"customer_email,omitempty"`
	ServingType    string     `json:"serving_type,omitempty"`
	PaymentMethod  string     `json:"payment_method,omitempty"`
	OrderID        *uuid.UUID `gorm:"type:uuid" json:"order_id,omitempty"`
	LastActivityAt time.Time  `gorm:"index" json:"last_activity_at"`
	LastSequence   int64      `json:"last_sequence"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderView is the read model of an order.
type OrderView struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber   string     `gorm:"index" json:"order_number,omitempty"`
	SessionID     *uuid.UUID `gorm:"type:uuid;index" json:"session_id,omitempty"`
	LocationID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"location_id"`
	Status        string     `gorm:"type:varchar(30);not null;index" json:"status"`
	Customer      string     `json:"customer,omitempty"`
	ServingType   string     `json:"serving_type,omitempty"`
	Lines         []ViewLine `gorm:"serializer:json" json:"lines"`
	Subtotal      float64    `json:"subtotal"`
	Discount      float64    `json:"discount"`
	Tax           float64    `json:"tax"`
	Tip           float64    `json:"tip"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	PaymentStatus string     `json:"payment_status,omitempty"`
	LastSequence  int64      `json:"last_sequence"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderStatusHistory is one status transition of an order. The unique index
// on (order_id, sequence) makes event re-delivery a no-op.
type OrderStatusHistory struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_status_history,priority:1" json:"order_id"`
	Sequence   int64     `gorm:"not null;uniqueIndex:idx_status_history,priority:2" json:"sequence"`
	Status     string    `gorm:"type:varchar(30);not null" json:"status"`
	OccurredAt time.Time `gorm:"not null" json:"occurred_at"`
}

// DailyOrderStats is the per-day analytics rollup.
type DailyOrderStats struct {
	Day             string    `gorm:"type:varchar(10);primaryKey" json:"day"` // 2006-01-02
	OrdersConfirmed int64     `json:"orders_confirmed"`
	OrdersCompleted int64     `json:"orders_completed"`
	OrdersCancelled int64     `json:"orders_cancelled"`
	GrossSales      float64   `json:"gross_sales"`
	DiscountTotal   float64   `json:"discount_total"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// StatsAppliedEvent marks a stream position as already counted into the
// daily rollup. The unique index on (aggregate_id, sequence) makes event
// re-delivery a no-op, the same way OrderStatusHistory handles it.
type StatsAppliedEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	AggregateID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stats_applied,priority:1" json:"aggregate_id"`
	Sequence    int64     `gorm:"not null;uniqueIndex:idx_stats_applied,priority:2" json:"sequence"`
	AppliedAt   time.Time `gorm:"autoCreateTime" json:"applied_at"`
}

// ProjectorCheckpoint tracks the last applied sequence per projector and
// aggregate. Stalled checkpoints mark a projection halted by a bad event;
// replay past them is refused until the stream is repaired.
type ProjectorCheckpoint struct {
	Projector    string    `gorm:"type:varchar(40);primaryKey" json:"projector"`
	AggregateID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"aggregate_id"`
	LastSequence int64     `json:"last_sequence"`
	Stalled      bool      `json:"stalled"`
	LastError    string    `json:"last_error,omitempty"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
