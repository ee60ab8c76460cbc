package events

import (
	"time"

	"github.com/google/uuid"
)

// ModifierSelection is a modifier chosen for a cart line. PriceImpact is the
// per-unit amount resolved by the catalog gateway at command time.
type ModifierSelection struct {
	ModifierID  uuid.UUID `json:"modifier_id"`
	Name        string    `json:"name,omitempty"`
	PriceImpact float64   `json:"price_impact"`
}

// SessionStarted opens a session and locks its location.
type SessionStarted struct {
	SessionID  uuid.UUID `json:"session_id"`
	LocationID uuid.UUID `json:"location_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

func (SessionStarted) EventType() Type { return TypeSessionStarted }

// ItemsSearched records a catalog search; it counts as session activity.
type ItemsSearched struct {
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searched_at"`
}

func (ItemsSearched) EventType() Type { return TypeItemsSearched }

// MenuBrowsed records a category browse; it counts as session activity.
type MenuBrowsed struct {
	CategoryID uuid.UUID `json:"category_id"`
	BrowsedAt  time.Time `json:"browsed_at"`
}

func (MenuBrowsed) EventType() Type { return TypeMenuBrowsed }

// ItemAdded adds quantity of an item to the cart. UnitPrice and modifier price
// impacts are always the server-resolved values, never client input.
type ItemAdded struct {
	ItemID    uuid.UUID           `json:"item_id"`
	Quantity  int                 `json:"quantity"`
	UnitPrice float64             `json:"unit_price"`
	Modifiers []ModifierSelection `json:"modifiers,omitempty"`
	Notes     string              `json:"notes,omitempty"`
	AddedAt   time.Time           `json:"added_at"`
}

func (ItemAdded) EventType() Type { return TypeItemAdded }

// ItemRemoved removes a cart line entirely.
type ItemRemoved struct {
	ItemID    uuid.UUID `json:"item_id"`
	RemovedAt time.Time `json:"removed_at"`
}

func (ItemRemoved) EventType() Type { return TypeItemRemoved }

// ItemQuantityChanged sets the new absolute quantity of an existing line,
// re-priced at command time.
type ItemQuantityChanged struct {
	ItemID    uuid.UUID `json:"item_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	ChangedAt time.Time `json:"changed_at"`
}

func (ItemQuantityChanged) EventType() Type { return TypeItemQuantityChanged }

// ServingTypeSet records dine-in / takeaway / delivery selection.
type ServingTypeSet struct {
	ServingType string    `json:"serving_type"`
	SetAt       time.Time `json:"set_at"`
}

func (ServingTypeSet) EventType() Type { return TypeServingTypeSet }

// CustomerInfoSet records checkout contact details.
type CustomerInfoSet struct {
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
	Email string    `json:"email,omitempty"`
	SetAt time.Time `json:"set_at"`
}

func (CustomerInfoSet) EventType() Type { return TypeCustomerInfoSet }

// PaymentMethodSelected records the shopper's payment method choice.
type PaymentMethodSelected struct {
	Method     string    `json:"method"`
	SelectedAt time.Time `json:"selected_at"`
}

func (PaymentMethodSelected) EventType() Type { return TypePaymentMethodSelected }

// DraftSaved marks an explicit or periodic draft save.
type DraftSaved struct {
	SavedAt time.Time `json:"saved_at"`
}

func (DraftSaved) EventType() Type { return TypeDraftSaved }

// SessionRecovered reactivates a dormant session before its TTL elapses.
type SessionRecovered struct {
	RecoveredAt time.Time `json:"recovered_at"`
}

func (SessionRecovered) EventType() Type { return TypeSessionRecovered }

// SessionConverted closes the session; the cart became order OrderID.
// This event is the commit point of the session-to-order conversion.
type SessionConverted struct {
	OrderID     uuid.UUID `json:"order_id"`
	ConvertedAt time.Time `json:"converted_at"`
}

func (SessionConverted) EventType() Type { return TypeSessionConverted }

// SessionAbandoned closes a session whose inactivity exceeded the TTL.
type SessionAbandoned struct {
	LastActivityAt time.Time `json:"last_activity_at"`
	AbandonedAt    time.Time `json:"abandoned_at"`
}

func (SessionAbandoned) EventType() Type { return TypeSessionAbandoned }

// SessionFailed moves the session to the error state.
type SessionFailed struct {
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

func (SessionFailed) EventType() Type { return TypeSessionFailed }
