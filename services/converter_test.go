package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/apperrors"
	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/services"
)

func orderTestConfig() services.OrderConfig {
	return services.OrderConfig{
		TaxRate:          0.19,
		AuthThresholdPct: 20,
		CatalogTimeout:   2 * time.Second,
	}
}

type converterFixture struct {
	store    eventstore.Store
	catalog  *mockCatalog
	sink     *captureSink
	sessions *services.SessionService
	conv     *services.Converter
}

func newConverterFixture(t *testing.T, store eventstore.Store) *converterFixture {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	f := &converterFixture{
		store:   store,
		catalog: newMockCatalog(),
		sink:    &captureSink{},
	}
	f.sessions = services.NewSessionService(store, f.catalog, newMockSessionViews(), nil, f.sink, sessionTestConfig(), logger)
	f.conv = services.NewConverter(store, f.catalog, newMockOfferRepo(), f.sink, orderTestConfig(), logger)
	return f
}

func (f *converterFixture) startWithCart(t *testing.T, items ...uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	sessionID, err := f.sessions.StartSession(ctx, uuid.New(), "cust-1")
	require.NoError(t, err)
	for _, itemID := range items {
		require.NoError(t, f.sessions.AddItem(ctx, sessionID, services.AddItemInput{ItemID: itemID, Quantity: 1}))
	}
	return sessionID
}

func lastEventType(t *testing.T, store eventstore.Store, aggregateID uuid.UUID) events.Type {
	t.Helper()
	stream, err := store.LoadStream(context.Background(), aggregateID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, stream)
	return stream[len(stream)-1].Type
}

func TestConvertCreatesOrderAndMarksSession(t *testing.T) {
	ctx := context.Background()
	f := newConverterFixture(t, eventstore.NewMemoryStore())

	itemID := uuid.New()
	f.catalog.prices[itemID] = 12.5
	sessionID := f.startWithCart(t, itemID)
	require.NoError(t, f.sessions.SelectPaymentMethod(ctx, sessionID, "card"))

	orderID, err := f.conv.Convert(ctx, sessionID)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, orderID)

	// Session stream ends at the conversion commit point.
	assert.Equal(t, events.TypeSessionConverted, lastEventType(t, f.store, sessionID))

	orderStream, err := f.store.LoadStream(ctx, orderID, 0)
	require.NoError(t, err)
	types := make([]events.Type, 0, len(orderStream))
	for _, env := range orderStream {
		types = append(types, env.Type)
	}
	assert.Equal(t, []events.Type{
		events.TypeOrderStarted,
		events.TypeOrderItemsAdded,
		events.TypeOrderItemsValidated,
		events.TypeOrderPaymentMethodSet,
	}, types)

	started, err := orderStream[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, sessionID, started.(*events.OrderStarted).SessionID)
}

func TestConvertTwiceReturnsExistingOrder(t *testing.T) {
	ctx := context.Background()
	f := newConverterFixture(t, eventstore.NewMemoryStore())

	itemID := uuid.New()
	f.catalog.prices[itemID] = 5.0
	sessionID := f.startWithCart(t, itemID)

	orderID, err := f.conv.Convert(ctx, sessionID)
	require.NoError(t, err)

	again, err := f.conv.Convert(ctx, sessionID)
	assert.Equal(t, apperrors.KindAlreadyConverted, apperrors.KindOf(err))
	assert.Equal(t, orderID, again, "a repeat conversion must surface the original order")
}

func TestConvertEmptyCartFails(t *testing.T) {
	ctx := context.Background()
	f := newConverterFixture(t, eventstore.NewMemoryStore())

	sessionID := f.startWithCart(t)

	_, err := f.conv.Convert(ctx, sessionID)
	assert.Equal(t, apperrors.KindValidationFailed, apperrors.KindOf(err))
	assert.Equal(t, events.TypeSessionStarted, lastEventType(t, f.store, sessionID))
}

func TestConvertRepricesThroughCatalog(t *testing.T) {
	ctx := context.Background()
	f := newConverterFixture(t, eventstore.NewMemoryStore())

	itemID := uuid.New()
	f.catalog.prices[itemID] = 10.0
	sessionID := f.startWithCart(t, itemID)

	// Price changed between browsing and checkout; the order carries the
	// price at conversion time.
	f.catalog.prices[itemID] = 11.0

	orderID, err := f.conv.Convert(ctx, sessionID)
	require.NoError(t, err)

	orderStream, err := f.store.LoadStream(ctx, orderID, 0)
	require.NoError(t, err)
	evt, err := orderStream[1].Decode()
	require.NoError(t, err)
	added := evt.(*events.OrderItemsAdded)
	require.Len(t, added.Lines, 1)
	assert.Equal(t, 11.0, added.Lines[0].UnitPrice)
}

func TestConvertUnavailableItemFails(t *testing.T) {
	ctx := context.Background()
	f := newConverterFixture(t, eventstore.NewMemoryStore())

	itemID := uuid.New()
	f.catalog.prices[itemID] = 10.0
	sessionID := f.startWithCart(t, itemID)

	f.catalog.unavailable[itemID] = true

	_, err := f.conv.Convert(ctx, sessionID)
	assert.Equal(t, apperrors.KindValidationFailed, apperrors.KindOf(err))
}

// raceStore fails the first session append and lets a competing conversion
// commit in the gap, reproducing two terminals converting the same cart.
type raceStore struct {
	eventstore.Store
	sessionID uuid.UUID
	fired     bool
	competing func()
}

func (s *raceStore) Append(ctx context.Context, aggregateID uuid.UUID, expectedVersion int64, evts []events.Event) ([]eventstore.Envelope, error) {
	if aggregateID == s.sessionID && !s.fired {
		s.fired = true
		if s.competing != nil {
			s.competing()
		}
		return nil, eventstore.ErrConcurrencyConflict
	}
	return s.Store.Append(ctx, aggregateID, expectedVersion, evts)
}

func TestConvertCompensatesOnLostRace(t *testing.T) {
	ctx := context.Background()
	inner := eventstore.NewMemoryStore()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	winner := newConverterFixture(t, inner)
	itemID := uuid.New()
	winner.catalog.prices[itemID] = 8.0
	sessionID := winner.startWithCart(t, itemID)

	race := &raceStore{Store: inner, sessionID: sessionID}
	loserCatalog := newMockCatalog()
	loserCatalog.prices[itemID] = 8.0
	loserSink := &captureSink{}
	loser := services.NewConverter(race, loserCatalog, newMockOfferRepo(), loserSink, orderTestConfig(), logger)

	var winnerOrderID uuid.UUID
	race.competing = func() {
		var cerr error
		winnerOrderID, cerr = winner.conv.Convert(ctx, sessionID)
		require.NoError(t, cerr)
	}

	got, err := loser.Convert(ctx, sessionID)
	assert.Equal(t, apperrors.KindAlreadyConverted, apperrors.KindOf(err))
	assert.Equal(t, winnerOrderID, got, "the loser must report the winning order")

	// The loser's staged order was orphaned and must end cancelled.
	var orphanID uuid.UUID
	for _, env := range loserSink.envs {
		if env.Type == events.TypeOrderCancelled {
			orphanID = env.AggregateID
		}
	}
	require.NotEqual(t, uuid.Nil, orphanID, "compensation must cancel the orphan order")
	require.NotEqual(t, winnerOrderID, orphanID)
	assert.Equal(t, events.TypeOrderCancelled, lastEventType(t, inner, orphanID))
}
