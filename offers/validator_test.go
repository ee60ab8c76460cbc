package offers_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpkontreras/cw-sub006/offers"
)

func ruleNames(failures []offers.RuleFailure) []string {
	names := make([]string, 0, len(failures))
	for _, f := range failures {
		names = append(names, f.Rule)
	}
	return names
}

func TestValidateReturnsAllFailuresAtOnce(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	offer := offers.Offer{
		ID:         uuid.New(),
		Type:       offers.TypePercentage,
		Value:      10,
		Active:     false,
		ValidUntil: now.Add(-24 * time.Hour),
		Conditions: offers.Conditions{MinOrderAmount: 50},
	}
	snap := snapshot(offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 30, Quantity: 1})

	failures := offers.Validate(offer, snap, offers.ValidationInput{Now: now})
	names := ruleNames(failures)
	assert.Contains(t, names, "active")
	assert.Contains(t, names, "valid_until")
	assert.Contains(t, names, "min_order_amount")
	require.Len(t, failures, 3)
}

func TestMinOrderAmountSuggestsShortfall(t *testing.T) {
	offer := offers.Offer{
		ID:         uuid.New(),
		Type:       offers.TypePercentage,
		Value:      10,
		Active:     true,
		Conditions: offers.Conditions{MinOrderAmount: 50},
	}
	snap := snapshot(offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 30, Quantity: 1})

	failures := offers.Validate(offer, snap, offers.ValidationInput{Now: time.Now().UTC()})
	require.Len(t, failures, 1)
	assert.Equal(t, "min_order_amount", failures[0].Rule)
	assert.Contains(t, failures[0].Suggestion, "20.00")
}

func TestTimeWindowAcrossMidnight(t *testing.T) {
	offer := offers.Offer{
		ID:        uuid.New(),
		Type:      offers.TypeHappyHour,
		Value:     20,
		Active:    true,
		StartTime: "22:00",
		EndTime:   "02:00",
	}
	snap := snapshot(offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 10, Quantity: 1})

	late := time.Date(2026, 8, 31, 23, 30, 0, 0, time.UTC)
	assert.Empty(t, offers.Validate(offer, snap, offers.ValidationInput{Now: late}))

	early := time.Date(2026, 8, 31, 1, 0, 0, 0, time.UTC)
	assert.Empty(t, offers.Validate(offer, snap, offers.ValidationInput{Now: early}))

	afternoon := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	failures := offers.Validate(offer, snap, offers.ValidationInput{Now: afternoon})
	require.Len(t, failures, 1)
	assert.Equal(t, "time_window", failures[0].Rule)
}

func TestPerCustomerLimitEnforced(t *testing.T) {
	offer := offers.Offer{
		ID:               uuid.New(),
		Type:             offers.TypePercentage,
		Value:            10,
		Active:           true,
		PerCustomerLimit: 2,
	}
	snap := snapshot(offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 10, Quantity: 1})

	failures := offers.Validate(offer, snap, offers.ValidationInput{
		Now:                time.Now().UTC(),
		CustomerUsageCount: 2,
	})
	require.Len(t, failures, 1)
	assert.Equal(t, "per_customer_limit", failures[0].Rule)
}

func TestCodeMustMatch(t *testing.T) {
	offer := offers.Offer{
		ID:     uuid.New(),
		Code:   "HAPPY10",
		Type:   offers.TypePercentage,
		Value:  10,
		Active: true,
	}
	snap := snapshot(offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 10, Quantity: 1})

	failures := offers.Validate(offer, snap, offers.ValidationInput{Now: time.Now().UTC(), ProvidedCode: "HAPPY1O"})
	require.Len(t, failures, 1)
	assert.Equal(t, "code", failures[0].Rule)

	assert.Empty(t, offers.Validate(offer, snap, offers.ValidationInput{Now: time.Now().UTC(), ProvidedCode: "HAPPY10"}))
}

func TestTargetedOfferNeedsQualifyingItem(t *testing.T) {
	target := uuid.New()
	offer := offers.Offer{
		ID:            uuid.New(),
		Type:          offers.TypePercentage,
		Value:         10,
		Active:        true,
		TargetItemIDs: []uuid.UUID{target},
	}

	miss := snapshot(offers.SnapshotLine{ItemID: uuid.New(), UnitPrice: 10, Quantity: 1})
	failures := offers.Validate(offer, miss, offers.ValidationInput{Now: time.Now().UTC()})
	require.Len(t, failures, 1)
	assert.Equal(t, "target_items", failures[0].Rule)

	hit := snapshot(offers.SnapshotLine{ItemID: target, UnitPrice: 10, Quantity: 1})
	assert.Empty(t, offers.Validate(offer, hit, offers.ValidationInput{Now: time.Now().UTC()}))
}
