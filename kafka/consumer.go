package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shop-svc/config"
	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var errMalformedEvent = errors.New("malformed event")

func InitConsumer(cfg config.KafkaConfig, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized", zap.Strings("brokers", cfg.Brokers))
	return consumer, nil
}

// Notifier delivers a message to a user.
type Notifier interface {
	Push(ctx context.Context, userID int, message string) error
}

// NotificationConsumer tells buyers about completed payments. Delivery
// failures are retried with backoff; malformed events are dropped.
type NotificationConsumer struct {
	consumer   sarama.Consumer
	topic      string
	notifier   Notifier
	logger     *zap.Logger
	maxRetries int
	backoff    func(attempt int) time.Duration
}

func NewNotificationConsumer(consumer sarama.Consumer, topic string, notifier Notifier, logger *zap.Logger) *NotificationConsumer {
	return &NotificationConsumer{
		consumer:   consumer,
		topic:      topic,
		notifier:   notifier,
		logger:     logger,
		maxRetries: 3,
		backoff:    func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}
}

// Run consumes until ctx is cancelled.
func (n *NotificationConsumer) Run(ctx context.Context) error {
	partitionConsumer, err := n.consumer.ConsumePartition(n.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	n.logger.Info("Kafka consumer started", zap.String("topic", n.topic))

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Kafka consumer stopped", zap.String("topic", n.topic))
			return nil
		case message, ok := <-partitionConsumer.Messages():
			if !ok {
				return nil
			}
			if err := n.handleMessageWithRetry(ctx, message); err != nil {
				n.logger.Error("Failed to handle message after retries", zap.Error(err))
			}
		case err, ok := <-partitionConsumer.Errors():
			if !ok {
				return nil
			}
			n.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func (n *NotificationConsumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	var lastErr error
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		err := n.handleMessage(ctx, message)
		if err == nil {
			return nil
		}
		if errors.Is(err, errMalformedEvent) {
			return err
		}
		lastErr = err
		if attempt < n.maxRetries {
			backoff := n.backoff(attempt)
			n.logger.Warn("Retrying message handling",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", n.maxRetries, lastErr)
}

func (n *NotificationConsumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, consumerCarrier(message.Headers))
	ctx, span := otel.Tracer("shop-service").Start(ctx, "ProcessNotification")
	defer span.End()

	var event models.PaymentEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if event.EventType == "" {
		return fmt.Errorf("%w: missing event_type", errMalformedEvent)
	}

	span.SetAttributes(attribute.String("event.type", event.EventType))

	switch event.EventType {
	case models.EventPaymentCompleted:
		if err := n.notifyPaymentCompleted(ctx, event); err != nil {
			span.RecordError(err)
			return err
		}
	default:
		n.logger.Debug("Unknown event type", zap.String("event_type", event.EventType))
	}
	return nil
}

func (n *NotificationConsumer) notifyPaymentCompleted(ctx context.Context, event models.PaymentEvent) error {
	message := fmt.Sprintf("Payment for order #%d was successful! Amount: %s. Transaction ID: %s",
		event.OrderID, event.Amount.StringFixed(2), event.TransactionID)
	if err := n.notifier.Push(ctx, event.UserID, message); err != nil {
		return err
	}

	middleware.RecordNotificationSent(event.EventType)
	n.logger.Info("Payment notification sent",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", event.OrderID),
		zap.Int("user_id", event.UserID),
		zap.String("transaction_id", event.TransactionID),
		zap.String("message", message),
	)
	return nil
}
