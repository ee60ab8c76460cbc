// Package kafka moves committed event envelopes through the event bus:
// the producer fans appended envelopes out to a topic, the consumer feeds
// them into the projection dispatcher.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/eventstore"
)

// Producer writes committed envelopes to the event topic. Messages are
// keyed by aggregate id so one stream's events stay ordered within a
// partition.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a producer for the event topic.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: writer, logger: logger}
}

// Publish writes the envelopes as one message batch.
func (p *Producer) Publish(ctx context.Context, envs []eventstore.Envelope) error {
	msgs := make([]kafka.Message, 0, len(envs))
	for _, env := range envs {
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(env.AggregateID.String()),
			Value: data,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("Failed to write kafka messages", zap.Error(err))
		return err
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() {
	_ = p.writer.Close()
}
