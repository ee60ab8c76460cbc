package eventstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jpkontreras/cw-sub006/events"
)

// EventRecord is the stored form of an envelope. The unique index on
// (aggregate_id, sequence) is what enforces optimistic concurrency: a losing
// writer hits a duplicate key instead of silently forking the stream.
type EventRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	AggregateID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_events_stream,priority:1"`
	Sequence    int64     `gorm:"not null;uniqueIndex:idx_events_stream,priority:2"`
	Type        string    `gorm:"type:varchar(64);not null"`
	Payload     []byte    `gorm:"type:jsonb;not null"`
	OccurredAt  time.Time `gorm:"not null"`
}

// TableName sets the events table name.
func (EventRecord) TableName() string { return "events" }

// PostgresStore implements Store on a gorm-managed postgres database.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore creates a Store backed by db.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, aggregateID uuid.UUID, expectedVersion int64, evts []events.Event) ([]Envelope, error) {
	if len(evts) == 0 {
		return nil, nil
	}

	envs, err := wrap(aggregateID, expectedVersion, evts, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	records := make([]EventRecord, 0, len(envs))
	for _, env := range envs {
		records = append(records, EventRecord{
			AggregateID: env.AggregateID,
			Sequence:    env.Sequence,
			Type:        string(env.Type),
			Payload:     env.Payload,
			OccurredAt:  env.OccurredAt,
		})
	}

	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrConcurrencyConflict
		}
		return nil, err
	}
	return envs, nil
}

// LoadStream implements Store.
func (s *PostgresStore) LoadStream(ctx context.Context, aggregateID uuid.UUID, fromVersion int64) ([]Envelope, error) {
	var records []EventRecord
	if err := s.db.WithContext(ctx).
		Where("aggregate_id = ? AND sequence > ?", aggregateID, fromVersion).
		Order("sequence ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	envs := make([]Envelope, 0, len(records))
	for _, r := range records {
		envs = append(envs, Envelope{
			AggregateID: r.AggregateID,
			Sequence:    r.Sequence,
			Type:        events.Type(r.Type),
			Payload:     r.Payload,
			OccurredAt:  r.OccurredAt,
		})
	}
	return envs, nil
}

func isDuplicateKey(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
