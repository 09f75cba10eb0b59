// Package notify delivers placed-order notifications over Kafka.
package notify

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/nimbusmart/order-service/internal/domain/order"
)

var _ order.Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher implements order.Publisher on top of a Kafka topic. The
// writer runs in async mode: WriteMessages enqueues and returns without
// waiting for broker acknowledgment, so publishing never blocks the
// placement outcome. Delivery errors surface in the completion callback.
type KafkaPublisher struct {
	writer *kafka.Writer
	lg     *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on the given
// brokers. RequireAll acks plus the writer's internal retries give
// at-least-once delivery.
func NewKafkaPublisher(brokers []string, topic string, lg *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{lg: lg}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion:   p.onCompletion,
	}
	return p
}

// Publish enqueues the placed-order event keyed by order number so the
// downstream consumer can deduplicate redeliveries.
func (p *KafkaPublisher) Publish(ctx context.Context, event order.PlacedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal placed event")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderNumber),
		Value: payload,
	})
	if err != nil {
		return errors.Wrap(err, "enqueue placed event")
	}
	return nil
}

func (p *KafkaPublisher) onCompletion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, msg := range messages {
		p.lg.Error("Order notification delivery failed",
			zap.String("order_number", string(msg.Key)),
			zap.Error(err),
		)
	}
}

// Close flushes buffered messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
