// Package projections materializes read models from committed event
// streams. Projections are eventually consistent with the log and fully
// rebuildable by replay; every projector keys its writes by aggregate and
// sequence so re-delivery is a no-op.
package projections

import (
	"context"

	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
)

// Projector consumes committed envelopes and updates one read model.
// Apply is only ever called with envelopes of a single aggregate in
// sequence order; envelopes of independent aggregates may interleave.
type Projector interface {
	Name() string
	Handles(t events.Type) bool
	Apply(ctx context.Context, env eventstore.Envelope) error
}
