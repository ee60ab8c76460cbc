package offers_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jpkontreras/cw-sub006/offers"
)

func snapshot(lines ...offers.SnapshotLine) offers.OrderSnapshot {
	return offers.OrderSnapshot{LocationID: uuid.New(), Lines: lines}
}

func TestPercentageCappedByMaxDiscount(t *testing.T) {
	offer := offers.Offer{
		ID:          uuid.New(),
		Type:        offers.TypePercentage,
		Value:       20,
		MaxDiscount: 15,
	}
	snap := snapshot(offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 100, Quantity: 1})

	result := offers.Calculate(offer, snap)
	assert.Equal(t, 15.0, result.DiscountAmount)
	assert.True(t, result.WasLimited)
}

func TestFixedNeverExceedsEligibleAmount(t *testing.T) {
	offer := offers.Offer{ID: uuid.New(), Type: offers.TypeFixed, Value: 50}
	snap := snapshot(offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 30, Quantity: 1})

	result := offers.Calculate(offer, snap)
	assert.Equal(t, 30.0, result.DiscountAmount)
	assert.True(t, result.WasLimited)
}

func TestBuyTwoGetOneHalfOff(t *testing.T) {
	itemID := uuid.New()
	offer := offers.Offer{
		ID:   uuid.New(),
		Type: offers.TypeBuyXGetY,
		Conditions: offers.Conditions{
			BuyQuantity:        2,
			GetQuantity:        1,
			GetDiscountPercent: 50,
		},
	}
	// 5 units at $10: one complete buy-2-get-1 set, one unit at 50% off.
	snap := snapshot(offers.SnapshotLine{ItemID: itemID, UnitPrice: 10, Quantity: 5})

	result := offers.Calculate(offer, snap)
	assert.Equal(t, 5.0, result.DiscountAmount)
	assert.Equal(t, []uuid.UUID{itemID}, result.AffectedItems)
}

func TestBuyXGetYDiscountsCheapestUnits(t *testing.T) {
	itemID := uuid.New()
	offer := offers.Offer{
		ID:   uuid.New(),
		Type: offers.TypeBuyXGetY,
		Conditions: offers.Conditions{
			BuyQuantity:        1,
			GetQuantity:        1,
			GetDiscountPercent: 100,
		},
	}
	snap := snapshot(
		offers.SnapshotLine{ItemID: itemID, UnitPrice: 12, Quantity: 1},
		offers.SnapshotLine{ItemID: itemID, UnitPrice: 8, Quantity: 1},
	)

	result := offers.Calculate(offer, snap)
	assert.Equal(t, 8.0, result.DiscountAmount)
}

func TestComboRequiresAllComponents(t *testing.T) {
	burger, fries, drink := uuid.New(), uuid.New(), uuid.New()
	offer := offers.Offer{
		ID:   uuid.New(),
		Type: offers.TypeCombo,
		Conditions: offers.Conditions{
			ComboItemIDs: []uuid.UUID{burger, fries, drink},
			ComboPrice:   12,
		},
	}

	partial := snapshot(
		offers.SnapshotLine{ItemID: burger, UnitPrice: 8, Quantity: 1},
		offers.SnapshotLine{ItemID: fries, UnitPrice: 4, Quantity: 1},
	)
	assert.Equal(t, 0.0, offers.Calculate(offer, partial).DiscountAmount)

	full := snapshot(
		offers.SnapshotLine{ItemID: burger, UnitPrice: 8, Quantity: 1},
		offers.SnapshotLine{ItemID: fries, UnitPrice: 4, Quantity: 1},
		offers.SnapshotLine{ItemID: drink, UnitPrice: 3, Quantity: 1},
	)
	// Components sum to 15, combo price 12.
	assert.Equal(t, 3.0, offers.Calculate(offer, full).DiscountAmount)
}

func TestTieredPicksHighestQualifyingTier(t *testing.T) {
	offer := offers.Offer{
		ID:   uuid.New(),
		Type: offers.TypeLoyalty,
		Conditions: offers.Conditions{
			Tiers: []offers.Tier{
				{MinAmount: 50, DiscountType: "fixed", Value: 5},
				{MinAmount: 100, DiscountType: "percentage", Value: 10},
			},
		},
	}

	small := snapshot(offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 60, Quantity: 1})
	assert.Equal(t, 5.0, offers.Calculate(offer, small).DiscountAmount)

	big := snapshot(offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 120, Quantity: 1})
	assert.Equal(t, 12.0, offers.Calculate(offer, big).DiscountAmount)
}

func TestExcludedItemsNeverDiscounted(t *testing.T) {
	excluded := uuid.New()
	offer := offers.Offer{
		ID:              uuid.New(),
		Type:            offers.TypePercentage,
		Value:           10,
		ExcludedItemIDs: []uuid.UUID{excluded},
	}
	snap := snapshot(
		offers.SnapshotLine{ItemID: excluded, UnitPrice: 100, Quantity: 1},
		offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 40, Quantity: 1},
	)

	result := offers.Calculate(offer, snap)
	assert.Equal(t, 4.0, result.DiscountAmount)
}
