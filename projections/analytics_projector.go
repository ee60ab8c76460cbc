package projections

import (
	"context"

	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/repository"
)

// AnalyticsProjector maintains the daily order rollup. The stats
// repository's applied-event ledger keeps each stream position from
// incrementing the counters more than once, independent of the
// dispatcher checkpoint.
type AnalyticsProjector struct {
	stats  repository.StatsRepository
	logger *zap.Logger
}

// NewAnalyticsProjector creates the projector.
func NewAnalyticsProjector(stats repository.StatsRepository, logger *zap.Logger) *AnalyticsProjector {
	return &AnalyticsProjector{stats: stats, logger: logger}
}

// Name implements Projector.
func (p *AnalyticsProjector) Name() string { return "daily_stats" }

// Handles implements Projector.
func (p *AnalyticsProjector) Handles(t events.Type) bool {
	switch t {
	case events.TypeOrderConfirmed, events.TypeOrderCompleted, events.TypeOrderCancelled:
		return true
	}
	return false
}

// Apply implements Projector.
func (p *AnalyticsProjector) Apply(ctx context.Context, env eventstore.Envelope) error {
	evt, err := env.Decode()
	if err != nil {
		return err
	}

	day := env.OccurredAt.Format("2006-01-02")
	var delta repository.StatsDelta
	switch e := evt.(type) {
	case *events.OrderConfirmed:
		delta.OrdersConfirmed = 1
		delta.GrossSales = e.Total
		delta.DiscountTotal = e.Discount
	case *events.OrderCompleted:
		delta.OrdersCompleted = 1
	case *events.OrderCancelled:
		delta.OrdersCancelled = 1
	default:
		return nil
	}

	return p.stats.Increment(ctx, day, env.AggregateID, env.Sequence, delta)
}
