package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/aggregates"
	"github.com/jpkontreras/cw-sub006/apperrors"
	"github.com/jpkontreras/cw-sub006/catalog"
	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/repository"
)

// Converter turns a session's cart into a new order stream. The two
// streams cannot share a transaction, so the conversion is ordered to
// keep "at most one order per session" regardless of where it is
// interrupted: the order stream is written first, and the session's
// converted event is the commit point. An order whose session was taken
// by a concurrent conversion is cancelled by a compensating event and
// never surfaces to clients.
type Converter struct {
	store   eventstore.Store
	catalog catalog.Gateway
	offers  repository.OfferRepository
	sink    EventSink
	cfg     OrderConfig
	logger  *zap.Logger
}

// NewConverter creates the converter.
func NewConverter(store eventstore.Store, gw catalog.Gateway, offerRepo repository.OfferRepository, sink EventSink, cfg OrderConfig, logger *zap.Logger) *Converter {
	return &Converter{store: store, catalog: gw, offers: offerRepo, sink: sink, cfg: cfg, logger: logger}
}

// Convert converts the session into a new order and returns the order id.
// Converting an already converted session returns the existing order id
// with an AlreadyConverted error, so retried requests are safe.
func (c *Converter) Convert(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	for attempt := 0; attempt < maxCommandRetries; attempt++ {
		stream, err := c.store.LoadStream(ctx, sessionID, 0)
		if err != nil {
			return uuid.Nil, apperrors.Internal("failed to load session stream", err)
		}

		sess, err := aggregates.LoadSession(sessionID, stream)
		if err != nil {
			return uuid.Nil, apperrors.Internal("failed to replay session", err)
		}
		if !sess.Exists() {
			return uuid.Nil, apperrors.NotFound("session not found")
		}
		if sess.Status == aggregates.SessionConverted {
			return sess.OrderID, apperrors.AlreadyConverted("session is already converted")
		}

		now := time.Now().UTC()
		orderID := uuid.New()

		// Stage the order stream first. Until the session's converted
		// event commits, this order is an orphan candidate.
		orderEnvs, err := c.stageOrder(ctx, orderID, sess, now)
		if err != nil {
			return uuid.Nil, err
		}

		if err := sess.MarkConverted(orderID, now); err != nil {
			c.compensate(ctx, orderID)
			return uuid.Nil, err
		}

		sessEnvs, err := c.store.Append(ctx, sessionID, sess.Version(), sess.Pending())
		if err != nil {
			c.compensate(ctx, orderID)
			if errors.Is(err, eventstore.ErrConcurrencyConflict) {
				continue
			}
			return uuid.Nil, apperrors.Internal("failed to commit conversion", err)
		}

		if c.sink != nil {
			_ = c.sink.Publish(ctx, orderEnvs)
			_ = c.sink.Publish(ctx, sessEnvs)
		}

		c.logger.Info("Session converted",
			zap.String("session_id", sessionID.String()),
			zap.String("order_id", orderID.String()))
		return orderID, nil
	}
	return uuid.Nil, apperrors.ConcurrencyConflict("session was modified concurrently, please retry")
}

// stageOrder opens the order stream with the session's cart, re-priced
// and availability-checked through the catalog.
func (c *Converter) stageOrder(ctx context.Context, orderID uuid.UUID, sess *aggregates.Session, now time.Time) ([]eventstore.Envelope, error) {
	if len(sess.Lines) == 0 {
		return nil, apperrors.Validation("cannot convert an empty cart")
	}

	cctx, cancel := context.WithTimeout(ctx, c.cfg.CatalogTimeout)
	defer cancel()

	lines := make([]events.OrderLine, 0, len(sess.Lines))
	for _, l := range sess.Lines {
		quote, err := c.catalog.GetPrice(cctx, l.ItemID, sess.LocationID, "")
		if err != nil {
			return nil, apperrors.CatalogUnavailable(err)
		}
		if !quote.Available {
			return nil, apperrors.Validation("an item in the cart is no longer available")
		}
		lines = append(lines, events.OrderLine{
			LineItemID: uuid.New(),
			ItemID:     l.ItemID,
			UnitPrice:  quote.Price,
			Quantity:   l.Quantity,
			Modifiers:  l.Modifiers,
			Notes:      l.Notes,
		})
	}

	order := aggregates.NewOrder(orderID)
	if err := order.Start(sess.ID(), sess.LocationID, sess.ServingType, sess.CustomerName, now); err != nil {
		return nil, err
	}
	if err := order.AddItems(lines, now); err != nil {
		return nil, err
	}
	if err := order.ValidateItems(lines, now); err != nil {
		return nil, err
	}
	if sess.PaymentMethod != "" {
		if err := order.SetPaymentMethod(sess.PaymentMethod, now); err != nil {
			return nil, err
		}
	}

	envs, err := c.store.Append(ctx, orderID, 0, order.Pending())
	if err != nil {
		return nil, apperrors.Internal("failed to stage order stream", err)
	}
	return envs, nil
}

// compensate cancels an orphan order whose session conversion did not
// commit. Best-effort: an orphan that survives a crash here is still
// invisible, no session ever references it.
func (c *Converter) compensate(ctx context.Context, orderID uuid.UUID) {
	stream, err := c.store.LoadStream(ctx, orderID, 0)
	if err != nil {
		c.logger.Error("Failed to load orphan order for compensation",
			zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}

	order, err := aggregates.LoadOrder(orderID, stream)
	if err != nil {
		c.logger.Error("Failed to replay orphan order for compensation",
			zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}
	if err := order.Cancel("conversion superseded", time.Now().UTC()); err != nil {
		return
	}

	envs, err := c.store.Append(ctx, orderID, order.Version(), order.Pending())
	if err != nil {
		c.logger.Error("Failed to cancel orphan order",
			zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}
	if c.sink != nil {
		_ = c.sink.Publish(ctx, envs)
	}
}
