package projections_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/models"
	"github.com/jpkontreras/cw-sub006/projections"
	"github.com/jpkontreras/cw-sub006/repository"
)

type statsKey struct {
	aggregateID uuid.UUID
	sequence    int64
}

// memStats keeps the applied-event ledger the way the GORM repository does:
// a position that was already counted leaves the counters untouched.
type memStats struct {
	rows    map[string]*models.DailyOrderStats
	applied map[statsKey]bool
}

func newMemStats() *memStats {
	return &memStats{
		rows:    make(map[string]*models.DailyOrderStats),
		applied: make(map[statsKey]bool),
	}
}

func (m *memStats) Increment(_ context.Context, day string, aggregateID uuid.UUID, sequence int64, delta repository.StatsDelta) error {
	key := statsKey{aggregateID, sequence}
	if m.applied[key] {
		return nil
	}
	m.applied[key] = true

	row, ok := m.rows[day]
	if !ok {
		row = &models.DailyOrderStats{Day: day}
		m.rows[day] = row
	}
	row.OrdersConfirmed += delta.OrdersConfirmed
	row.OrdersCompleted += delta.OrdersCompleted
	row.OrdersCancelled += delta.OrdersCancelled
	row.GrossSales += delta.GrossSales
	row.DiscountTotal += delta.DiscountTotal
	return nil
}

func (m *memStats) FindByDay(_ context.Context, day string) (*models.DailyOrderStats, error) {
	row, ok := m.rows[day]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func confirmedEnvelope(t *testing.T, aggregateID uuid.UUID, seq int64, occurred time.Time) eventstore.Envelope {
	t.Helper()
	payload, err := json.Marshal(events.OrderConfirmed{
		OrderNumber: "ORD-20260314-0001",
		Total:       119,
		Discount:    10,
		ConfirmedAt: occurred,
	})
	require.NoError(t, err)
	return eventstore.Envelope{
		AggregateID: aggregateID,
		Sequence:    seq,
		Type:        events.TypeOrderConfirmed,
		Payload:     payload,
		OccurredAt:  occurred,
	}
}

func TestRedeliveredConfirmationCountsOnce(t *testing.T) {
	ctx := context.Background()
	stats := newMemStats()
	proj := projections.NewAnalyticsProjector(stats, zap.NewNop())

	occurred := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	env := confirmedEnvelope(t, uuid.New(), 5, occurred)

	require.NoError(t, proj.Apply(ctx, env))
	require.NoError(t, proj.Apply(ctx, env))

	row, err := stats.FindByDay(ctx, "2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.OrdersConfirmed)
	assert.InDelta(t, 119.0, row.GrossSales, 1e-9)
	assert.InDelta(t, 10.0, row.DiscountTotal, 1e-9)
}

func TestRollupBucketsByDay(t *testing.T) {
	ctx := context.Background()
	stats := newMemStats()
	proj := projections.NewAnalyticsProjector(stats, zap.NewNop())

	day1 := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 15, 0, 10, 0, 0, time.UTC)
	require.NoError(t, proj.Apply(ctx, confirmedEnvelope(t, uuid.New(), 5, day1)))
	require.NoError(t, proj.Apply(ctx, confirmedEnvelope(t, uuid.New(), 5, day2)))

	cancelled, err := json.Marshal(events.OrderCancelled{Reason: "customer walked out", CancelledAt: day2})
	require.NoError(t, err)
	require.NoError(t, proj.Apply(ctx, eventstore.Envelope{
		AggregateID: uuid.New(),
		Sequence:    3,
		Type:        events.TypeOrderCancelled,
		Payload:     cancelled,
		OccurredAt:  day2,
	}))

	first, err := stats.FindByDay(ctx, "2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.OrdersConfirmed)
	assert.Equal(t, int64(0), first.OrdersCancelled)

	second, err := stats.FindByDay(ctx, "2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.OrdersConfirmed)
	assert.Equal(t, int64(1), second.OrdersCancelled)
}
