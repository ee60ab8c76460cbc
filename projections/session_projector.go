package projections

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/models"
	"github.com/jpkontreras/cw-sub006/repository"
)

// SessionProjector maintains the session read model, and keeps the redis
// summary cache warm when one is configured.
type SessionProjector struct {
	views  repository.SessionViewRepository
	cache  *repository.SessionCache
	logger *zap.Logger
}

// NewSessionProjector creates the projector. cache may be nil.
func NewSessionProjector(views repository.SessionViewRepository, cache *repository.SessionCache, logger *zap.Logger) *SessionProjector {
	return &SessionProjector{views: views, cache: cache, logger: logger}
}

// Name implements Projector.
func (p *SessionProjector) Name() string { return "session_view" }

// Handles implements Projector.
func (p *SessionProjector) Handles(t events.Type) bool {
	switch t {
	case events.TypeSessionStarted, events.TypeItemsSearched, events.TypeMenuBrowsed,
		events.TypeItemAdded, events.TypeItemRemoved, events.TypeItemQuantityChanged,
		events.TypeServingTypeSet, events.TypeCustomerInfoSet, events.TypePaymentMethodSelected,
		events.TypeDraftSaved, events.TypeSessionRecovered, events.TypeSessionConverted,
		events.TypeSessionAbandoned, events.TypeSessionFailed:
		return true
	}
	return false
}

// Apply implements Projector.
func (p *SessionProjector) Apply(ctx context.Context, env eventstore.Envelope) error {
	evt, err := env.Decode()
	if err != nil {
		return err
	}

	view, err := p.views.FindByID(ctx, env.AggregateID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		view = &models.SessionView{ID: env.AggregateID}
	} else if err != nil {
		return err
	}

	if err := p.mutate(view, evt); err != nil {
		return err
	}
	view.LastSequence = env.Sequence

	if err := p.views.Upsert(ctx, view); err != nil {
		return err
	}

	if p.cache != nil {
		if err := p.cache.SaveSession(ctx, view); err != nil {
			p.logger.Warn("Failed to refresh session cache",
				zap.String("session_id", view.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (p *SessionProjector) mutate(view *models.SessionView, evt events.Event) error {
	switch e := evt.(type) {
	case *events.SessionStarted:
		view.Status = "active"
		view.LocationID = e.LocationID
		view.CustomerID = e.CustomerID
		view.LastActivityAt = e.StartedAt
	case *events.ItemsSearched:
		view.LastActivityAt = e.SearchedAt
	case *events.MenuBrowsed:
		view.LastActivityAt = e.BrowsedAt
	case *events.ItemAdded:
		merged := false
		for i := range view.Lines {
			if view.Lines[i].ItemID == e.ItemID {
				view.Lines[i].Quantity += e.Quantity
				view.Lines[i].UnitPrice = e.UnitPrice
				merged = true
				break
			}
		}
		if !merged {
			var modifiers float64
			for _, m := range e.Modifiers {
				modifiers += m.PriceImpact
			}
			view.Lines = append(view.Lines, models.ViewLine{
				ItemID:    e.ItemID,
				Quantity:  e.Quantity,
				UnitPrice: e.UnitPrice,
				Modifiers: modifiers,
				Notes:     e.Notes,
			})
		}
		view.LastActivityAt = e.AddedAt
		p.reactivate(view)
	case *events.ItemRemoved:
		for i := range view.Lines {
			if view.Lines[i].ItemID == e.ItemID {
				view.Lines = append(view.Lines[:i], view.Lines[i+1:]...)
				break
			}
		}
		view.LastActivityAt = e.RemovedAt
		p.reactivate(view)
	case *events.ItemQuantityChanged:
		for i := range view.Lines {
			if view.Lines[i].ItemID == e.ItemID {
				view.Lines[i].Quantity = e.Quantity
				view.Lines[i].UnitPrice = e.UnitPrice
				break
			}
		}
		view.LastActivityAt = e.ChangedAt
		p.reactivate(view)
	case *events.ServingTypeSet:
		view.ServingType = e.ServingType
		view.LastActivityAt = e.SetAt
		p.reactivate(view)
	case *events.CustomerInfoSet:
		view.CustomerName = e.Name
		view.CustomerPhone = e.Phone
		view.CustomerEmail = e.Email
		view.LastActivityAt = e.SetAt
		p.reactivate(view)
	case *events.PaymentMethodSelected:
		view.PaymentMethod = e.Method
		view.LastActivityAt = e.SelectedAt
		p.reactivate(view)
	case *events.DraftSaved:
		view.LastActivityAt = e.SavedAt
	case *events.SessionRecovered:
		view.Status = "recovered"
		view.LastActivityAt = e.RecoveredAt
	case *events.SessionConverted:
		view.Status = "converted"
		orderID := e.OrderID
		view.OrderID = &orderID
		view.LastActivityAt = e.ConvertedAt
	case *events.SessionAbandoned:
		view.Status = "abandoned"
	case *events.SessionFailed:
		view.Status = "error"
	default:
		return fmt.Errorf("session projector: unexpected event %T", evt)
	}

	view.CartTotal = 0
	for _, l := range view.Lines {
		view.CartTotal += (l.UnitPrice + l.Modifiers) * float64(l.Quantity)
	}
	return nil
}

func (p *SessionProjector) reactivate(view *models.SessionView) {
	if view.Status == "recovered" {
		view.Status = "active"
	}
}
