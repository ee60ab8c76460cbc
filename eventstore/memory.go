package eventstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpkontreras/cw-sub006/events"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[uuid.UUID][]Envelope
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[uuid.UUID][]Envelope)}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, aggregateID uuid.UUID, expectedVersion int64, evts []events.Event) ([]Envelope, error) {
	if len(evts) == 0 {
		return nil, nil
	}

	envs, err := wrap(aggregateID, expectedVersion, evts, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	if int64(len(stream)) != expectedVersion {
		return nil, ErrConcurrencyConflict
	}
	s.streams[aggregateID] = append(stream, envs...)
	return envs, nil
}

// LoadStream implements Store.
func (s *MemoryStore) LoadStream(ctx context.Context, aggregateID uuid.UUID, fromVersion int64) ([]Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateID]
	if fromVersion >= int64(len(stream)) {
		return nil, nil
	}
	out := make([]Envelope, len(stream)-int(fromVersion))
	copy(out, stream[fromVersion:])
	return out, nil
}
