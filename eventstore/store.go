package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jpkontreras/cw-sub006/events"
)

// ErrConcurrencyConflict is returned when an append's expected version is
// behind the stored stream. The caller must reload, re-apply and retry.
var ErrConcurrencyConflict = errors.New("event store: stream version conflict")

// Envelope is one committed event as stored: payload plus stream position.
// Envelopes are immutable once appended.
type Envelope struct {
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Sequence    int64           `json:"sequence"`
	Type        events.Type     `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Decode returns the concrete event carried by the envelope.
func (e Envelope) Decode() (events.Event, error) {
	return events.Unmarshal(e.Type, e.Payload)
}

// Store is an append-only, per-aggregate ordered event log with optimistic
// concurrency. A stream's version is the sequence of its last event; an
// empty stream is at version 0.
type Store interface {
	// Append writes evts after expectedVersion and returns the committed
	// envelopes. It returns ErrConcurrencyConflict if the stream has moved.
	Append(ctx context.Context, aggregateID uuid.UUID, expectedVersion int64, evts []events.Event) ([]Envelope, error)

	// LoadStream returns the stream's envelopes with sequence > fromVersion,
	// in sequence order. Pass fromVersion 0 for the full stream.
	LoadStream(ctx context.Context, aggregateID uuid.UUID, fromVersion int64) ([]Envelope, error)
}

// wrap builds the envelopes for an append starting after expectedVersion.
func wrap(aggregateID uuid.UUID, expectedVersion int64, evts []events.Event, now time.Time) ([]Envelope, error) {
	envs := make([]Envelope, 0, len(evts))
	for i, evt := range evts {
		payload, err := events.Marshal(evt)
		if err != nil {
			return nil, err
		}
		envs = append(envs, Envelope{
			AggregateID: aggregateID,
			Sequence:    expectedVersion + int64(i) + 1,
			Type:        evt.EventType(),
			Payload:     payload,
			OccurredAt:  now,
		})
	}
	return envs, nil
}
