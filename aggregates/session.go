package aggregates

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jpkontreras/cw-sub006/apperrors"
	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
)

// SessionStatus is the lifecycle state of an order session.
type SessionStatus string

const (
	SessionInitializing SessionStatus = "initializing"
	SessionActive       SessionStatus = "active"
	SessionRecovered    SessionStatus = "recovered"
	SessionAbandoned    SessionStatus = "abandoned"
	SessionConverted    SessionStatus = "converted"
	SessionError        SessionStatus = "error"
)

// CartLine is one line of the in-progress cart. UnitPrice is always the
// catalog-resolved price; quantity is always positive, a line dropping to
// zero is removed.
type CartLine struct {
	ItemID    uuid.UUID
	Quantity  int
	UnitPrice float64
	Modifiers []events.ModifierSelection
	Notes     string
}

// LineTotal returns the line amount including modifier price impacts.
func (l CartLine) LineTotal() float64 {
	unit := l.UnitPrice
	for _, m := range l.Modifiers {
		unit += m.PriceImpact
	}
	return unit * float64(l.Quantity)
}

// Session is the event-sourced cart aggregate. State is mutated only by
// apply; commands validate against current state and record new events.
type Session struct {
	base

	Status        SessionStatus
	LocationID    uuid.UUID
	CustomerID    string
	Lines         []CartLine
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	ServingType   string
	PaymentMethod string
	LastActivity  time.Time
	OrderID       uuid.UUID
}

// NewSession returns an empty session aggregate for id.
func NewSession(id uuid.UUID) *Session {
	return &Session{base: base{id: id}, Status: SessionInitializing}
}

// LoadSession rebuilds a session from its committed stream.
func LoadSession(id uuid.UUID, envs []eventstore.Envelope) (*Session, error) {
	s := NewSession(id)
	if err := replay(s, &s.base, envs); err != nil {
		return nil, err
	}
	return s, nil
}

// Exists reports whether the session has any committed or pending history.
func (s *Session) Exists() bool {
	return s.version > 0 || len(s.pending) > 0
}

// CartTotal returns the current cart amount.
func (s *Session) CartTotal() float64 {
	var total float64
	for _, l := range s.Lines {
		total += l.LineTotal()
	}
	return total
}

// Convertible reports whether the session may be converted into an order.
func (s *Session) Convertible() bool {
	return s.Status == SessionActive || s.Status == SessionRecovered
}

func (s *Session) raise(evt events.Event) error {
	if err := s.apply(evt); err != nil {
		return err
	}
	s.record(evt)
	return nil
}

// guardMutable rejects commands on sessions that can no longer change.
func (s *Session) guardMutable() error {
	switch s.Status {
	case SessionActive, SessionRecovered:
		return nil
	case SessionConverted:
		return apperrors.AlreadyConverted("session is already converted")
	case SessionAbandoned, SessionError:
		return apperrors.AlreadyTerminal(fmt.Sprintf("session is %s", s.Status))
	default:
		return apperrors.Validation("session is not started")
	}
}

// Start opens the session and locks its location for life.
func (s *Session) Start(locationID uuid.UUID, customerID string, now time.Time) error {
	if s.Status != SessionInitializing {
		return apperrors.Validation("session is already started")
	}
	if locationID == uuid.Nil {
		return apperrors.Validation("location is required")
	}
	return s.raise(&events.SessionStarted{
		SessionID:  s.id,
		LocationID: locationID,
		CustomerID: customerID,
		StartedAt:  now,
	})
}

// Search records a catalog search as session activity.
func (s *Session) Search(query string, now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	return s.raise(&events.ItemsSearched{Query: query, SearchedAt: now})
}

// Browse records a category browse as session activity.
func (s *Session) Browse(categoryID uuid.UUID, now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	return s.raise(&events.MenuBrowsed{CategoryID: categoryID, BrowsedAt: now})
}

// AddItem adds quantity of an item at the server-resolved unit price.
func (s *Session) AddItem(itemID uuid.UUID, quantity int, unitPrice float64, modifiers []events.ModifierSelection, notes string, now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if quantity <= 0 {
		return apperrors.Validation("quantity must be positive")
	}
	if unitPrice < 0 {
		return apperrors.Validation("unit price cannot be negative")
	}
	return s.raise(&events.ItemAdded{
		ItemID:    itemID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Modifiers: modifiers,
		Notes:     notes,
		AddedAt:   now,
	})
}

// ChangeQuantity sets the absolute quantity of an existing line, re-priced.
// A quantity of zero removes the line.
func (s *Session) ChangeQuantity(itemID uuid.UUID, quantity int, unitPrice float64, now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if quantity < 0 {
		return apperrors.Validation("quantity cannot be negative")
	}
	if s.findLine(itemID) < 0 {
		return apperrors.Validation("item is not in the cart")
	}
	if quantity == 0 {
		return s.raise(&events.ItemRemoved{ItemID: itemID, RemovedAt: now})
	}
	return s.raise(&events.ItemQuantityChanged{
		ItemID:    itemID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		ChangedAt: now,
	})
}

// RemoveItem removes a cart line.
func (s *Session) RemoveItem(itemID uuid.UUID, now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if s.findLine(itemID) < 0 {
		return apperrors.Validation("item is not in the cart")
	}
	return s.raise(&events.ItemRemoved{ItemID: itemID, RemovedAt: now})
}

// SetServingType records dine-in / takeaway / delivery.
func (s *Session) SetServingType(servingType string, now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if servingType == "" {
		return apperrors.Validation("serving type is required")
	}
	return s.raise(&events.ServingTypeSet{ServingType: servingType, SetAt: now})
}

// SetCustomerInfo records checkout contact details.
func (s *Session) SetCustomerInfo(name, phone, email string, now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if name == "" {
		return apperrors.Validation("customer name is required")
	}
	return s.raise(&events.CustomerInfoSet{Name: name, Phone: phone, Email: email, SetAt: now})
}

// SelectPaymentMethod records the shopper's payment method choice.
func (s *Session) SelectPaymentMethod(method string, now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if method == "" {
		return apperrors.Validation("payment method is required")
	}
	return s.raise(&events.PaymentMethodSelected{Method: method, SelectedAt: now})
}

// SaveDraft records an explicit draft save.
func (s *Session) SaveDraft(now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	return s.raise(&events.DraftSaved{SavedAt: now})
}

// Recover reactivates a dormant or reaped session whose age is still below
// ttl. Converted sessions are consumed and can never come back.
func (s *Session) Recover(ttl time.Duration, now time.Time) error {
	switch s.Status {
	case SessionConverted:
		return apperrors.AlreadyConverted("session is already converted")
	case SessionError:
		return apperrors.AlreadyTerminal("session is failed")
	case SessionInitializing:
		return apperrors.Validation("session is not started")
	}
	if now.Sub(s.LastActivity) >= ttl {
		return apperrors.SessionExpired("session expired, start a new one")
	}
	return s.raise(&events.SessionRecovered{RecoveredAt: now})
}

// MarkConverted closes the session as converted into orderID. Only the
// converter calls this; the append of the resulting event is the conversion
// commit point.
func (s *Session) MarkConverted(orderID uuid.UUID, now time.Time) error {
	if s.Status == SessionConverted {
		return apperrors.AlreadyConverted("session is already converted")
	}
	if !s.Convertible() {
		return apperrors.AlreadyTerminal(fmt.Sprintf("session is %s", s.Status))
	}
	if len(s.Lines) == 0 {
		return apperrors.Validation("cannot convert an empty cart")
	}
	return s.raise(&events.SessionConverted{OrderID: orderID, ConvertedAt: now})
}

// MarkAbandoned closes a session whose inactivity exceeded ttl. The reaper
// re-checks the last activity here, against freshly loaded state, to avoid
// racing a just-reactivated session.
func (s *Session) MarkAbandoned(ttl time.Duration, now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if now.Sub(s.LastActivity) < ttl {
		return apperrors.Validation("session is still active")
	}
	return s.raise(&events.SessionAbandoned{LastActivityAt: s.LastActivity, AbandonedAt: now})
}

// Fail moves the session to the error state.
func (s *Session) Fail(reason string, now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if reason == "" {
		return apperrors.Validation("failure reason is required")
	}
	return s.raise(&events.SessionFailed{Reason: reason, FailedAt: now})
}

func (s *Session) findLine(itemID uuid.UUID) int {
	for i, l := range s.Lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

// touch marks session activity and folds recovered back into active.
func (s *Session) touch(at time.Time) {
	s.LastActivity = at
	if s.Status == SessionRecovered {
		s.Status = SessionActive
	}
}

func (s *Session) apply(evt events.Event) error {
	switch e := evt.(type) {
	case *events.SessionStarted:
		s.Status = SessionActive
		s.LocationID = e.LocationID
		s.CustomerID = e.CustomerID
		s.LastActivity = e.StartedAt
	case *events.ItemsSearched:
		s.touch(e.SearchedAt)
	case *events.MenuBrowsed:
		s.touch(e.BrowsedAt)
	case *events.ItemAdded:
		if i := s.findLine(e.ItemID); i >= 0 {
			s.Lines[i].Quantity += e.Quantity
			s.Lines[i].UnitPrice = e.UnitPrice
			if e.Notes != "" {
				s.Lines[i].Notes = e.Notes
			}
		} else {
			s.Lines = append(s.Lines, CartLine{
				ItemID:    e.ItemID,
				Quantity:  e.Quantity,
				UnitPrice: e.UnitPrice,
				Modifiers: e.Modifiers,
				Notes:     e.Notes,
			})
		}
		s.touch(e.AddedAt)
	case *events.ItemRemoved:
		if i := s.findLine(e.ItemID); i >= 0 {
			s.Lines = append(s.Lines[:i], s.Lines[i+1:]...)
		}
		s.touch(e.RemovedAt)
	case *events.ItemQuantityChanged:
		if i := s.findLine(e.ItemID); i >= 0 {
			s.Lines[i].Quantity = e.Quantity
			s.Lines[i].UnitPrice = e.UnitPrice
		}
		s.touch(e.ChangedAt)
	case *events.ServingTypeSet:
		s.ServingType = e.ServingType
		s.touch(e.SetAt)
	case *events.CustomerInfoSet:
		s.CustomerName = e.Name
		s.CustomerPhone = e.Phone
		s.CustomerEmail = e.Email
		s.touch(e.SetAt)
	case *events.PaymentMethodSelected:
		s.PaymentMethod = e.Method
		s.touch(e.SelectedAt)
	case *events.DraftSaved:
		s.touch(e.SavedAt)
	case *events.SessionRecovered:
		s.Status = SessionRecovered
		s.LastActivity = e.RecoveredAt
	case *events.SessionConverted:
		s.Status = SessionConverted
		s.OrderID = e.OrderID
		s.LastActivity = e.ConvertedAt
	case *events.SessionAbandoned:
		s.Status = SessionAbandoned
	case *events.SessionFailed:
		s.Status = SessionError
	default:
		return fmt.Errorf("session: unexpected event %T", evt)
	}
	return nil
}
