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

func sessionTestConfig() services.SessionConfig {
	return services.SessionConfig{
		RecoveryTTL:    24 * time.Hour,
		AbandonAfter:   2 * time.Hour,
		CatalogTimeout: 2 * time.Second,
	}
}

type sessionFixture struct {
	store   eventstore.Store
	catalog *mockCatalog
	views   *mockSessionViews
	sink    *captureSink
	svc     *services.SessionService
}

func newSessionFixture(t *testing.T, store eventstore.Store) *sessionFixture {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	f := &sessionFixture{
		store:   store,
		catalog: newMockCatalog(),
		views:   newMockSessionViews(),
		sink:    &captureSink{},
	}
	f.svc = services.NewSessionService(store, f.catalog, f.views, nil, f.sink, sessionTestConfig(), logger)
	return f
}

func TestAddItemUsesCatalogPrice(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, eventstore.NewMemoryStore())

	itemID := uuid.New()
	modifierID := uuid.New()
	f.catalog.prices[itemID] = 4.5
	f.catalog.impacts[modifierID] = 0.75

	sessionID, err := f.svc.StartSession(ctx, uuid.New(), "cust-1")
	require.NoError(t, err)

	err = f.svc.AddItem(ctx, sessionID, services.AddItemInput{
		ItemID:      itemID,
		Quantity:    2,
		ModifierIDs: []uuid.UUID{modifierID},
	})
	require.NoError(t, err)

	stream, err := f.store.LoadStream(ctx, sessionID, 0)
	require.NoError(t, err)
	require.Len(t, stream, 2)

	evt, err := stream[1].Decode()
	require.NoError(t, err)
	added, ok := evt.(*events.ItemAdded)
	require.True(t, ok)

	// The stored price is the catalog's answer, never the client's.
	assert.Equal(t, 4.5, added.UnitPrice)
	require.Len(t, added.Modifiers, 1)
	assert.Equal(t, 0.75, added.Modifiers[0].PriceImpact)
}

func TestAddItemCatalogDownAppendsNothing(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, eventstore.NewMemoryStore())

	sessionID, err := f.svc.StartSession(ctx, uuid.New(), "")
	require.NoError(t, err)

	f.catalog.down = true
	err = f.svc.AddItem(ctx, sessionID, services.AddItemInput{ItemID: uuid.New(), Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCatalogUnavailable, apperrors.KindOf(err))

	stream, err := f.store.LoadStream(ctx, sessionID, 0)
	require.NoError(t, err)
	assert.Len(t, stream, 1, "a failed price lookup must not write a line")
}

func TestAddItemUnavailableItemRejected(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, eventstore.NewMemoryStore())

	itemID := uuid.New()
	f.catalog.prices[itemID] = 9.9
	f.catalog.unavailable[itemID] = true

	sessionID, err := f.svc.StartSession(ctx, uuid.New(), "")
	require.NoError(t, err)

	err = f.svc.AddItem(ctx, sessionID, services.AddItemInput{ItemID: itemID, Quantity: 1})
	assert.Equal(t, apperrors.KindValidationFailed, apperrors.KindOf(err))
}

func TestCommandRetriesAfterConflict(t *testing.T) {
	ctx := context.Background()
	inner := eventstore.NewMemoryStore()
	store := &conflictOnceStore{Store: inner}
	f := newSessionFixture(t, store)

	itemID := uuid.New()
	f.catalog.prices[itemID] = 3.0

	sessionID, err := f.svc.StartSession(ctx, uuid.New(), "")
	require.NoError(t, err)

	store.mu.Lock()
	store.remaining = 1
	store.mu.Unlock()

	err = f.svc.AddItem(ctx, sessionID, services.AddItemInput{ItemID: itemID, Quantity: 1})
	require.NoError(t, err, "one conflict should be absorbed by the retry loop")

	stream, err := inner.LoadStream(ctx, sessionID, 0)
	require.NoError(t, err)
	assert.Len(t, stream, 2)
	assert.GreaterOrEqual(t, f.catalog.calls, 2, "each attempt re-prices against the catalog")
}

func TestCommandGivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	inner := eventstore.NewMemoryStore()
	store := &conflictOnceStore{Store: inner}
	f := newSessionFixture(t, store)

	itemID := uuid.New()
	f.catalog.prices[itemID] = 3.0

	sessionID, err := f.svc.StartSession(ctx, uuid.New(), "")
	require.NoError(t, err)

	store.mu.Lock()
	store.remaining = 10
	store.mu.Unlock()

	err = f.svc.AddItem(ctx, sessionID, services.AddItemInput{ItemID: itemID, Quantity: 1})
	assert.Equal(t, apperrors.KindConcurrencyConflict, apperrors.KindOf(err))
}

func TestChangeQuantityToZeroSkipsCatalog(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, eventstore.NewMemoryStore())

	itemID := uuid.New()
	f.catalog.prices[itemID] = 5.0

	sessionID, err := f.svc.StartSession(ctx, uuid.New(), "")
	require.NoError(t, err)
	require.NoError(t, f.svc.AddItem(ctx, sessionID, services.AddItemInput{ItemID: itemID, Quantity: 2}))

	f.catalog.down = true
	require.NoError(t, f.svc.ChangeQuantity(ctx, sessionID, itemID, "", 0))

	stream, err := f.store.LoadStream(ctx, sessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, events.TypeItemRemoved, stream[len(stream)-1].Type)
}

func TestGetSessionRebuildsWhenProjectionLags(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, eventstore.NewMemoryStore())

	itemID := uuid.New()
	f.catalog.prices[itemID] = 10.0

	sessionID, err := f.svc.StartSession(ctx, uuid.New(), "cust-9")
	require.NoError(t, err)
	require.NoError(t, f.svc.AddItem(ctx, sessionID, services.AddItemInput{ItemID: itemID, Quantity: 3}))

	// The view store never saw the projection; the read must fall back to
	// replaying the stream.
	view, err := f.svc.GetSession(ctx, sessionID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.LastSequence)
	assert.Equal(t, 30.0, view.CartTotal)
	assert.Equal(t, "cust-9", view.CustomerID)
}

func TestGetSessionUnknownIDNotFound(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, eventstore.NewMemoryStore())

	_, err := f.svc.GetSession(ctx, uuid.New(), 0)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestCommandOnUnknownSessionNotFound(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, eventstore.NewMemoryStore())

	err := f.svc.SaveDraft(ctx, uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestSessionEventsReachSink(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, eventstore.NewMemoryStore())

	itemID := uuid.New()
	f.catalog.prices[itemID] = 1.0

	sessionID, err := f.svc.StartSession(ctx, uuid.New(), "")
	require.NoError(t, err)
	require.NoError(t, f.svc.AddItem(ctx, sessionID, services.AddItemInput{ItemID: itemID, Quantity: 1}))

	types := f.sink.types()
	require.Len(t, types, 2)
	assert.Equal(t, events.TypeSessionStarted, types[0])
	assert.Equal(t, events.TypeItemAdded, types[1])
}
