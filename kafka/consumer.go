package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/eventstore"
)

// Handler consumes batches of committed envelopes.
type Handler interface {
	Publish(ctx context.Context, envs []eventstore.Envelope) error
}

// Consumer reads event envelopes from the topic and feeds them to the
// handler, typically the projection dispatcher. Offsets commit after the
// handler returns; the dispatcher's checkpoints make re-delivery a no-op.
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	logger  *zap.Logger
}

// NewConsumer creates a consumer in the given group.
func NewConsumer(brokers []string, topic, groupID string, handler Handler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3, // 1KB
		MaxBytes: 1e6, // 1MB
	})
	return &Consumer{reader: reader, handler: handler, logger: logger}
}

// Run consumes until ctx is cancelled. Meant to be started as a goroutine.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("Kafka consumer started", zap.String("topic", c.reader.Config().Topic))

	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("Failed to read kafka message", zap.Error(err))
			continue
		}

		var env eventstore.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			c.logger.Error("Invalid event envelope, skipping",
				zap.String("key", string(m.Key)), zap.Error(err))
			continue
		}

		if err := c.handler.Publish(ctx, []eventstore.Envelope{env}); err != nil {
			c.logger.Error("Failed to project event",
				zap.String("aggregate_id", env.AggregateID.String()),
				zap.Int64("sequence", env.Sequence),
				zap.Error(err))
		}
	}

	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close kafka reader", zap.Error(err))
	}
	c.logger.Info("Kafka consumer stopped")
}
