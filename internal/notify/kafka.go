package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes order confirmations keyed by order number.
type KafkaNotifier struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaNotifier(brokers []string, topic string, logger *zap.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaNotifier{writer: writer, logger: logging.OrNop(logger)}
}

func (n *KafkaNotifier) SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal order confirmation: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.OrderNumber),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(msg.EventID)},
			{Key: "type", Value: []byte("order.confirmation")},
		},
	})
	if err != nil {
		return fmt.Errorf("publish order confirmation %s: %w", msg.OrderNumber, err)
	}

	n.logger.Info("order confirmation published",
		zap.String("event_id", msg.EventID),
		zap.String("order_number", msg.OrderNumber))
	return nil
}

func (n *KafkaNotifier) Close() error {
	if n.writer != nil {
		return n.writer.Close()
	}
	return nil
}
