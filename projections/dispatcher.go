package projections

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/repository"
)

// Dispatcher routes committed envelopes to the registered projectors and
// tracks per-aggregate checkpoints. Already-applied sequences are skipped,
// and a projector error stalls that aggregate's projection instead of
// silently dropping the event.
type Dispatcher struct {
	projectors  []Projector
	checkpoints repository.CheckpointRepository
	logger      *zap.Logger
}

// NewDispatcher creates a dispatcher over the given projectors.
func NewDispatcher(checkpoints repository.CheckpointRepository, logger *zap.Logger, projectors ...Projector) *Dispatcher {
	return &Dispatcher{
		projectors:  projectors,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

// Publish applies envs to every projector that handles their types. It
// never fails the producing command: errors are recorded on the checkpoint
// and logged.
func (d *Dispatcher) Publish(ctx context.Context, envs []eventstore.Envelope) error {
	for _, env := range envs {
		for _, p := range d.projectors {
			if !p.Handles(env.Type) {
				continue
			}
			d.applyOne(ctx, p, env)
		}
	}
	return nil
}

func (d *Dispatcher) applyOne(ctx context.Context, p Projector, env eventstore.Envelope) {
	cp, err := d.checkpoints.Get(ctx, p.Name(), env.AggregateID)
	if err != nil {
		d.logger.Error("Failed to load projector checkpoint",
			zap.String("projector", p.Name()),
			zap.String("aggregate_id", env.AggregateID.String()),
			zap.Error(err))
		return
	}

	if cp.Stalled {
		d.logger.Warn("Projection stalled, skipping event",
			zap.String("projector", p.Name()),
			zap.String("aggregate_id", env.AggregateID.String()),
			zap.Int64("sequence", env.Sequence),
			zap.String("last_error", cp.LastError))
		return
	}

	if env.Sequence <= cp.LastSequence {
		// Re-delivery of an applied event: no-op.
		return
	}

	if err := p.Apply(ctx, env); err != nil {
		d.logger.Error("Projector failed, stalling aggregate projection",
			zap.String("projector", p.Name()),
			zap.String("aggregate_id", env.AggregateID.String()),
			zap.Int64("sequence", env.Sequence),
			zap.Error(err))
		if merr := d.checkpoints.MarkStalled(ctx, p.Name(), env.AggregateID, err.Error()); merr != nil {
			d.logger.Error("Failed to mark projection stalled", zap.Error(merr))
		}
		return
	}

	cp.LastSequence = env.Sequence
	if err := d.checkpoints.Save(ctx, cp); err != nil {
		// An unsaved checkpoint means the next delivery would re-apply
		// this event, so the aggregate stalls until it is repaired.
		d.logger.Error("Failed to save projector checkpoint, stalling aggregate projection",
			zap.String("projector", p.Name()),
			zap.String("aggregate_id", env.AggregateID.String()),
			zap.Int64("sequence", env.Sequence),
			zap.Error(err))
		if merr := d.checkpoints.MarkStalled(ctx, p.Name(), env.AggregateID, err.Error()); merr != nil {
			d.logger.Error("Failed to mark projection stalled", zap.Error(merr))
		}
	}
}

// Rebuild replays an aggregate's full stream through the projectors.
// Applied sequences are skipped, so it is safe to run against a live
// system to catch a lagging projection up.
func (d *Dispatcher) Rebuild(ctx context.Context, store eventstore.Store, aggregateID uuid.UUID) error {
	envs, err := store.LoadStream(ctx, aggregateID, 0)
	if err != nil {
		return err
	}
	return d.Publish(ctx, envs)
}
