package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jpkontreras/cw-sub006/aggregates"
	"github.com/jpkontreras/cw-sub006/apperrors"
	"github.com/jpkontreras/cw-sub006/catalog"
	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/models"
	"github.com/jpkontreras/cw-sub006/repository"
)

const maxCommandRetries = 3

// SessionConfig carries the lifecycle tunables of sessions.
type SessionConfig struct {
	RecoveryTTL    time.Duration
	AbandonAfter   time.Duration
	CatalogTimeout time.Duration
}

// SessionService handles session commands. Every command is one
// load-decide-append cycle under optimistic concurrency; a version
// conflict restarts the whole cycle against the fresh stream.
type SessionService struct {
	store   eventstore.Store
	catalog catalog.Gateway
	views   repository.SessionViewRepository
	cache   *repository.SessionCache
	sink    EventSink
	cfg     SessionConfig
	logger  *zap.Logger
}

// NewSessionService creates the service. cache may be nil.
func NewSessionService(store eventstore.Store, gw catalog.Gateway, views repository.SessionViewRepository, cache *repository.SessionCache, sink EventSink, cfg SessionConfig, logger *zap.Logger) *SessionService {
	return &SessionService{store: store, catalog: gw, views: views, cache: cache, sink: sink, cfg: cfg, logger: logger}
}

// exec runs one command against the session stream under the retry loop.
// fn validates against the replayed aggregate and raises events; the
// pending events are appended at the version the aggregate was loaded at.
func (s *SessionService) exec(ctx context.Context, sessionID uuid.UUID, fn func(*aggregates.Session) error) ([]eventstore.Envelope, error) {
	for attempt := 0; attempt < maxCommandRetries; attempt++ {
		stream, err := s.store.LoadStream(ctx, sessionID, 0)
		if err != nil {
			return nil, apperrors.Internal("failed to load session stream", err)
		}

		sess, err := aggregates.LoadSession(sessionID, stream)
		if err != nil {
			return nil, apperrors.Internal("failed to replay session", err)
		}
		if !sess.Exists() {
			return nil, apperrors.NotFound("session not found")
		}
		if err := fn(sess); err != nil {
			return nil, err
		}
		if len(sess.Pending()) == 0 {
			return nil, nil
		}

		envs, err := s.store.Append(ctx, sessionID, sess.Version(), sess.Pending())
		if err != nil {
			if errors.Is(err, eventstore.ErrConcurrencyConflict) {
				s.logger.Debug("Session append conflicted, retrying",
					zap.String("session_id", sessionID.String()),
					zap.Int("attempt", attempt+1))
				continue
			}
			return nil, apperrors.Internal("failed to append session events", err)
		}

		s.publish(ctx, envs)
		return envs, nil
	}
	return nil, apperrors.ConcurrencyConflict("session was modified concurrently, please retry")
}

func (s *SessionService) publish(ctx context.Context, envs []eventstore.Envelope) {
	if s.sink != nil {
		_ = s.sink.Publish(ctx, envs)
	}
}

// StartSession opens a new session stream and returns its id.
func (s *SessionService) StartSession(ctx context.Context, locationID uuid.UUID, customerID string) (uuid.UUID, error) {
	sessionID := uuid.New()
	sess := aggregates.NewSession(sessionID)
	if err := sess.Start(locationID, customerID, time.Now().UTC()); err != nil {
		return uuid.Nil, err
	}

	envs, err := s.store.Append(ctx, sessionID, 0, sess.Pending())
	if err != nil {
		return uuid.Nil, apperrors.Internal("failed to start session", err)
	}
	s.publish(ctx, envs)

	s.logger.Info("Session started",
		zap.String("session_id", sessionID.String()),
		zap.String("location_id", locationID.String()))
	return sessionID, nil
}

// RecordSearch appends a catalog search as session activity.
func (s *SessionService) RecordSearch(ctx context.Context, sessionID uuid.UUID, query string) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		return sess.Search(query, time.Now().UTC())
	})
	return err
}

// RecordBrowse appends a category browse as session activity.
func (s *SessionService) RecordBrowse(ctx context.Context, sessionID uuid.UUID, categoryID uuid.UUID) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		return sess.Browse(categoryID, time.Now().UTC())
	})
	return err
}

// AddItemInput is the client's add-to-cart request. It carries no price:
// the catalog gateway is the only price authority and any price a client
// sends is discarded before this point.
type AddItemInput struct {
	ItemID      uuid.UUID
	VariantID   string
	Quantity    int
	ModifierIDs []uuid.UUID
	Notes       string
}

// AddItem prices the item and its modifiers through the catalog and adds
// the line. A failed or timed-out lookup aborts the command; a line is
// never written with a guessed price.
func (s *SessionService) AddItem(ctx context.Context, sessionID uuid.UUID, in AddItemInput) error {
	if in.Quantity <= 0 {
		return apperrors.Validation("quantity must be positive")
	}

	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.CatalogTimeout)
		defer cancel()

		quote, err := s.catalog.GetPrice(cctx, in.ItemID, sess.LocationID, in.VariantID)
		if err != nil {
			return apperrors.CatalogUnavailable(err)
		}
		if !quote.Available {
			return apperrors.Validation("item is not available at this location")
		}

		var modifiers []events.ModifierSelection
		for _, id := range in.ModifierIDs {
			impact, err := s.catalog.GetModifierPriceImpact(cctx, []uuid.UUID{id})
			if err != nil {
				return apperrors.CatalogUnavailable(err)
			}
			modifiers = append(modifiers, events.ModifierSelection{ModifierID: id, PriceImpact: impact})
		}

		return sess.AddItem(in.ItemID, in.Quantity, quote.Price, modifiers, in.Notes, time.Now().UTC())
	})
	return err
}

// ChangeQuantity sets a line's absolute quantity, re-priced through the
// catalog. Zero removes the line without a price lookup.
func (s *SessionService) ChangeQuantity(ctx context.Context, sessionID, itemID uuid.UUID, variantID string, quantity int) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		now := time.Now().UTC()
		if quantity == 0 {
			return sess.ChangeQuantity(itemID, 0, 0, now)
		}

		cctx, cancel := context.WithTimeout(ctx, s.cfg.CatalogTimeout)
		defer cancel()

		quote, err := s.catalog.GetPrice(cctx, itemID, sess.LocationID, variantID)
		if err != nil {
			return apperrors.CatalogUnavailable(err)
		}
		if !quote.Available {
			return apperrors.Validation("item is no longer available at this location")
		}
		return sess.ChangeQuantity(itemID, quantity, quote.Price, now)
	})
	return err
}

// RemoveItem removes a cart line.
func (s *SessionService) RemoveItem(ctx context.Context, sessionID, itemID uuid.UUID) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		return sess.RemoveItem(itemID, time.Now().UTC())
	})
	return err
}

// SetServingType records dine-in, takeaway or delivery.
func (s *SessionService) SetServingType(ctx context.Context, sessionID uuid.UUID, servingType string) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		return sess.SetServingType(servingType, time.Now().UTC())
	})
	return err
}

// SetCustomerInfo records checkout contact details.
func (s *SessionService) SetCustomerInfo(ctx context.Context, sessionID uuid.UUID, name, phone, email string) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		return sess.SetCustomerInfo(name, phone, email, time.Now().UTC())
	})
	return err
}

// SelectPaymentMethod records the shopper's payment method choice.
func (s *SessionService) SelectPaymentMethod(ctx context.Context, sessionID uuid.UUID, method string) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		return sess.SelectPaymentMethod(method, time.Now().UTC())
	})
	return err
}

// SaveDraft records an explicit draft checkpoint.
func (s *SessionService) SaveDraft(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		return sess.SaveDraft(time.Now().UTC())
	})
	return err
}

// Recover reactivates a dormant or reaped session within the recovery TTL.
func (s *SessionService) Recover(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		return sess.Recover(s.cfg.RecoveryTTL, time.Now().UTC())
	})
	return err
}

// Abandon reaps a session whose inactivity exceeded the configured window.
// The aggregate re-checks the window against freshly replayed state, so a
// stale candidate list cannot abandon a session that just woke up.
func (s *SessionService) Abandon(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		return sess.MarkAbandoned(s.cfg.AbandonAfter, time.Now().UTC())
	})
	return err
}

// Fail moves a session to the error state.
func (s *SessionService) Fail(ctx context.Context, sessionID uuid.UUID, reason string) error {
	_, err := s.exec(ctx, sessionID, func(sess *aggregates.Session) error {
		return sess.Fail(reason, time.Now().UTC())
	})
	return err
}

// GetSession returns the session read model, redis-first. minSequence
// gives read-your-writes: a cached or projected view behind that sequence
// falls through, and as a last resort the view is rebuilt from the stream.
func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID, minSequence int64) (*models.SessionView, error) {
	if s.cache != nil {
		if view, err := s.cache.GetSession(ctx, sessionID); err == nil && view != nil && view.LastSequence >= minSequence {
			return view, nil
		}
	}

	view, err := s.views.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.rebuildView(ctx, sessionID)
		}
		return nil, apperrors.Internal("failed to load session view", err)
	}
	if view.LastSequence < minSequence {
		return s.rebuildView(ctx, sessionID)
	}
	return view, nil
}

// rebuildView replays the stream into a transient view for callers that
// outran the projection.
func (s *SessionService) rebuildView(ctx context.Context, sessionID uuid.UUID) (*models.SessionView, error) {
	stream, err := s.store.LoadStream(ctx, sessionID, 0)
	if err != nil {
		return nil, apperrors.Internal("failed to load session stream", err)
	}
	if len(stream) == 0 {
		return nil, apperrors.NotFound("session not found")
	}

	sess, err := aggregates.LoadSession(sessionID, stream)
	if err != nil {
		return nil, apperrors.Internal("failed to replay session", err)
	}

	lines := make([]models.ViewLine, 0, len(sess.Lines))
	for _, l := range sess.Lines {
		var impact float64
		for _, m := range l.Modifiers {
			impact += m.PriceImpact
		}
		lines = append(lines, models.ViewLine{
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Modifiers: impact,
			Notes:     l.Notes,
		})
	}

	view := &models.SessionView{
		ID:             sess.ID(),
		Status:         string(sess.Status),
		LocationID:     sess.LocationID,
		CustomerID:     sess.CustomerID,
		Lines:          lines,
		CartTotal:      sess.CartTotal(),
		CustomerName:   sess.CustomerName,
		CustomerPhone:  sess.CustomerPhone,
		CustomerEmail:  sess.CustomerEmail,
		ServingType:    sess.ServingType,
		PaymentMethod:  sess.PaymentMethod,
		LastActivityAt: sess.LastActivity,
		LastSequence:   sess.Version(),
	}
	if sess.OrderID != uuid.Nil {
		id := sess.OrderID
		view.OrderID = &id
	}
	return view, nil
}

// ListSessions returns session views in a status, paginated.
func (s *SessionService) ListSessions(ctx context.Context, status string, page, limit int) ([]models.SessionView, int64, error) {
	return s.views.FindByStatus(ctx, status, page, limit)
}

// History returns the raw event stream of a session for auditing.
func (s *SessionService) History(ctx context.Context, sessionID uuid.UUID) ([]eventstore.Envelope, error) {
	stream, err := s.store.LoadStream(ctx, sessionID, 0)
	if err != nil {
		return nil, apperrors.Internal("failed to load session stream", err)
	}
	if len(stream) == 0 {
		return nil, apperrors.NotFound("session not found")
	}
	return stream, nil
}
