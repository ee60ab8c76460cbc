package services_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/apperrors"
	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/offers"
	"github.com/jpkontreras/cw-sub006/services"
)

type orderFixture struct {
	store   eventstore.Store
	catalog *mockCatalog
	offers  *mockOfferRepo
	views   *mockOrderViews
	sink    *captureSink
	svc     *services.OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	f := &orderFixture{
		store:   eventstore.NewMemoryStore(),
		catalog: newMockCatalog(),
		offers:  newMockOfferRepo(),
		views:   newMockOrderViews(),
		sink:    &captureSink{},
	}
	f.svc = services.NewOrderService(f.store, f.catalog, f.offers, f.views, f.sink, orderTestConfig(), logger)
	return f
}

// startWithItem opens a direct order with a single priced, validated line.
func (f *orderFixture) startWithItem(t *testing.T, price float64, quantity int) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	itemID := uuid.New()
	f.catalog.prices[itemID] = price

	orderID, err := f.svc.StartOrder(ctx, uuid.New(), "dine_in", "walk-in")
	require.NoError(t, err)
	require.NoError(t, f.svc.AddItems(ctx, orderID, []services.OrderLineInput{
		{ItemID: itemID, Quantity: quantity},
	}))
	require.NoError(t, f.svc.ValidateItems(ctx, orderID))
	return orderID, itemID
}

func decodeLast(t *testing.T, store eventstore.Store, aggregateID uuid.UUID) events.Event {
	t.Helper()
	stream, err := store.LoadStream(context.Background(), aggregateID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, stream)
	evt, err := stream[len(stream)-1].Decode()
	require.NoError(t, err)
	return evt
}

func TestAddItemsPricesThroughCatalog(t *testing.T) {
	f := newOrderFixture(t)
	orderID, _ := f.startWithItem(t, 7.25, 2)

	stream, err := f.store.LoadStream(context.Background(), orderID, 0)
	require.NoError(t, err)
	evt, err := stream[1].Decode()
	require.NoError(t, err)
	added, ok := evt.(*events.OrderItemsAdded)
	require.True(t, ok)
	require.Len(t, added.Lines, 1)
	assert.Equal(t, 7.25, added.Lines[0].UnitPrice)
	assert.Equal(t, 2, added.Lines[0].Quantity)
}

func TestValidateItemsRefreshesPrices(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	orderID, itemID := f.startWithItem(t, 7.25, 1)

	f.catalog.prices[itemID] = 8.0
	require.NoError(t, f.svc.ValidateItems(ctx, orderID))

	validated, ok := decodeLast(t, f.store, orderID).(*events.OrderItemsValidated)
	require.True(t, ok)
	assert.Equal(t, 8.0, validated.Lines[0].UnitPrice)
}

func TestApplyPromotionRecordsRedemption(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	orderID, _ := f.startWithItem(t, 50.0, 2)

	offer := &offers.Offer{
		Code:        "SAVE10",
		Name:        "Ten percent off",
		Type:        offers.TypePercentage,
		Value:       10,
		IsStackable: true,
		Active:      true,
	}
	require.NoError(t, f.offers.Create(ctx, offer))

	require.NoError(t, f.svc.ApplyPromotion(ctx, orderID, "SAVE10", "cust-1"))

	applied, ok := decodeLast(t, f.store, orderID).(*events.PromotionApplied)
	require.True(t, ok)
	assert.Equal(t, offer.ID, applied.Offer.OfferID)
	assert.Equal(t, 10.0, applied.Offer.DiscountAmount)
	assert.Equal(t, "SAVE10", applied.Code)

	usage, err := f.offers.CustomerUsageCount(ctx, offer.ID, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 1, usage, "a committed discount must be counted")
}

func TestApplyPromotionReturnsAllFailures(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	orderID, _ := f.startWithItem(t, 10.0, 1)

	offer := &offers.Offer{
		Code:   "BIGSPEND",
		Name:   "Big spender",
		Type:   offers.TypePercentage,
		Value:  20,
		Active: false,
		Conditions: offers.Conditions{
			MinOrderAmount: 100,
		},
	}
	require.NoError(t, f.offers.Create(ctx, offer))

	err := f.svc.ApplyPromotion(ctx, orderID, "BIGSPEND", "cust-1")
	var promoErr *services.PromotionFailureError
	require.True(t, errors.As(err, &promoErr))

	rules := make([]string, 0, len(promoErr.Failures))
	for _, failure := range promoErr.Failures {
		rules = append(rules, failure.Rule)
	}
	assert.ElementsMatch(t, []string{"active", "min_order_amount"}, rules)
}

func TestApplyPromotionUnknownCode(t *testing.T) {
	f := newOrderFixture(t)
	orderID, _ := f.startWithItem(t, 10.0, 1)

	err := f.svc.ApplyPromotion(context.Background(), orderID, "NOPE", "cust-1")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestApplyPromotionRejectsNonStackableCombination(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	orderID, _ := f.startWithItem(t, 50.0, 2)

	exclusive := &offers.Offer{
		Code: "EXCL", Name: "Exclusive", Type: offers.TypePercentage,
		Value: 15, Active: true, IsStackable: false,
	}
	other := &offers.Offer{
		Code: "ALSO", Name: "Also", Type: offers.TypeFixed,
		Value: 5, Active: true, IsStackable: true,
	}
	require.NoError(t, f.offers.Create(ctx, exclusive))
	require.NoError(t, f.offers.Create(ctx, other))

	require.NoError(t, f.svc.ApplyPromotion(ctx, orderID, "EXCL", "cust-1"))

	err := f.svc.ApplyPromotion(ctx, orderID, "ALSO", "cust-1")
	assert.Equal(t, apperrors.KindValidationFailed, apperrors.KindOf(err))
}

func TestCalculatePromotionsAppliesAutoOffers(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	orderID, _ := f.startWithItem(t, 50.0, 2)

	require.NoError(t, f.offers.Create(ctx, &offers.Offer{
		Name: "Auto ten percent", Type: offers.TypePercentage,
		Value: 10, Active: true, IsStackable: true, Priority: 10,
	}))
	require.NoError(t, f.offers.Create(ctx, &offers.Offer{
		Name: "Auto five off", Type: offers.TypeFixed,
		Value: 5, Active: true, IsStackable: true, Priority: 5,
	}))
	require.NoError(t, f.offers.Create(ctx, &offers.Offer{
		Name: "Retired", Type: offers.TypePercentage,
		Value: 50, Active: false, IsStackable: true, Priority: 100,
	}))

	require.NoError(t, f.svc.CalculatePromotions(ctx, orderID))

	calculated, ok := decodeLast(t, f.store, orderID).(*events.PromotionsCalculated)
	require.True(t, ok)
	require.Len(t, calculated.Applied, 2)

	var total float64
	for _, a := range calculated.Applied {
		assert.True(t, a.Auto)
		total += a.DiscountAmount
	}
	assert.InDelta(t, 15.0, total, 1e-9)
}

func TestConfirmAssignsOrderNumberOnce(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	orderID, _ := f.startWithItem(t, 20.0, 1)

	require.NoError(t, f.svc.ValidateItems(ctx, orderID))
	require.NoError(t, f.svc.CalculatePrice(ctx, orderID))

	number, err := f.svc.Confirm(ctx, orderID)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-\d{4}$`), number)

	_, err = f.svc.Confirm(ctx, orderID)
	require.Error(t, err, "an order is numbered exactly once")

	confirmed, ok := decodeLast(t, f.store, orderID).(*events.OrderConfirmed)
	require.True(t, ok)
	assert.Equal(t, number, confirmed.OrderNumber)
}

func TestRefundRequiresConfirmedOrder(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	orderID, _ := f.startWithItem(t, 20.0, 1)

	err := f.svc.Refund(ctx, orderID, "changed my mind", 20.0)
	require.Error(t, err)

	require.NoError(t, f.svc.ValidateItems(ctx, orderID))
	require.NoError(t, f.svc.CalculatePrice(ctx, orderID))
	_, err = f.svc.Confirm(ctx, orderID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Refund(ctx, orderID, "cold food", 23.8))
	refunded, ok := decodeLast(t, f.store, orderID).(*events.OrderRefunded)
	require.True(t, ok)
	assert.Equal(t, 23.8, refunded.Amount)
}

func TestAdjustPriceAuthorizationGate(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	orderID, _ := f.startWithItem(t, 50.0, 2)

	// 30% of a 100 subtotal is over the 20% threshold.
	err := f.svc.AdjustPrice(ctx, orderID, services.AdjustPriceInput{
		Type: "discount", Amount: 30, Reason: "regular", AuthorizedBy: "mgr",
	})
	assert.Equal(t, apperrors.KindRequiresAuthorization, apperrors.KindOf(err))

	err = f.svc.AdjustPrice(ctx, orderID, services.AdjustPriceInput{
		Type: "discount", Amount: 30, Reason: "regular", AuthorizedBy: "mgr", AuthCode: "A1",
	})
	require.NoError(t, err)
}

func TestOrderCommandRetriesAfterConflict(t *testing.T) {
	ctx := context.Background()
	inner := eventstore.NewMemoryStore()
	store := &conflictOnceStore{Store: inner}

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	f := newOrderFixture(t)
	svc := services.NewOrderService(store, f.catalog, f.offers, f.views, f.sink, orderTestConfig(), logger)

	itemID := uuid.New()
	f.catalog.prices[itemID] = 4.0
	orderID, err := svc.StartOrder(ctx, uuid.New(), "takeaway", "")
	require.NoError(t, err)

	store.mu.Lock()
	store.remaining = 1
	store.mu.Unlock()

	require.NoError(t, svc.AddItems(ctx, orderID, []services.OrderLineInput{{ItemID: itemID, Quantity: 1}}))
	stream, err := inner.LoadStream(ctx, orderID, 0)
	require.NoError(t, err)
	assert.Len(t, stream, 2)
}
