package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/awspkg"
	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
)

// EventSink receives committed envelopes after a successful append.
// Projection dispatch, kafka fanout and notifications all implement it;
// which of them run, and whether in-process or behind a queue, is wiring.
type EventSink interface {
	Publish(ctx context.Context, envs []eventstore.Envelope) error
}

// MultiSink fans committed envelopes out to several sinks. Sink errors are
// logged, never propagated: a command that was durably appended has
// succeeded regardless of downstream delivery.
type MultiSink struct {
	sinks  []EventSink
	logger *zap.Logger
}

// NewMultiSink creates a best-effort fanout over sinks.
func NewMultiSink(logger *zap.Logger, sinks ...EventSink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger}
}

// Publish implements EventSink.
func (m *MultiSink) Publish(ctx context.Context, envs []eventstore.Envelope) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, envs); err != nil {
			m.logger.Error("Event sink delivery failed", zap.Error(err))
		}
	}
	return nil
}

// SNSNotifier publishes lifecycle milestones (conversion, confirmation,
// completion) to an SNS topic for external consumers. Best-effort.
type SNSNotifier struct {
	client   awspkg.SNSPublisher
	topicArn string
	logger   *zap.Logger
}

// NewSNSNotifier creates the notifier.
func NewSNSNotifier(client awspkg.SNSPublisher, topicArn string, logger *zap.Logger) *SNSNotifier {
	return &SNSNotifier{client: client, topicArn: topicArn, logger: logger}
}

// Publish implements EventSink.
func (n *SNSNotifier) Publish(ctx context.Context, envs []eventstore.Envelope) error {
	if n.client == nil || n.topicArn == "" {
		return nil
	}
	for _, env := range envs {
		switch env.Type {
		case events.TypeSessionConverted, events.TypeOrderConfirmed,
			events.TypeOrderCompleted, events.TypeOrderCancelled, events.TypeOrderRefunded:
		default:
			continue
		}

		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := n.client.Publish(ctx, n.topicArn, data); err != nil {
			n.logger.Error("SNS publish failed",
				zap.String("type", string(env.Type)),
				zap.String("aggregate_id", env.AggregateID.String()),
				zap.Error(err))
		}
	}
	return nil
}
