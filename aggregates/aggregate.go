package aggregates

import (
	"github.com/google/uuid"

	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
)

// applier is the part of an aggregate the replay loop needs.
type applier interface {
	apply(evt events.Event) error
}

// base carries the stream identity, the committed version and the events
// raised since load. Version counts committed events only; pending events
// are not part of it until the store accepts them.
type base struct {
	id      uuid.UUID
	version int64
	pending []events.Event
}

// ID returns the aggregate's stream id.
func (b *base) ID() uuid.UUID { return b.id }

// Version returns the committed stream version the aggregate was loaded at.
// It is the expected version for the next append.
func (b *base) Version() int64 { return b.version }

// Pending returns events raised by commands since the aggregate was loaded.
func (b *base) Pending() []events.Event { return b.pending }

// ClearPending drops raised events after a successful append.
func (b *base) ClearPending() { b.pending = nil }

func (b *base) record(evt events.Event) {
	b.pending = append(b.pending, evt)
}

// replay applies a committed stream to an aggregate, advancing its version.
func replay(a applier, b *base, envs []eventstore.Envelope) error {
	for _, env := range envs {
		evt, err := env.Decode()
		if err != nil {
			return err
		}
		if err := a.apply(evt); err != nil {
			return err
		}
		b.version = env.Sequence
	}
	return nil
}
