package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"shop-svc/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func paymentEvent() models.PaymentEvent {
	return models.PaymentEvent{
		PaymentID:     5,
		OrderID:       12,
		UserID:        3,
		Amount:        decimal.RequireFromString("60.00"),
		Status:        models.PaymentStatusCompleted,
		EventType:     models.EventPaymentCompleted,
		TransactionID: "tx-123",
	}
}

func TestPublisher_PublishPayment(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "order_events" {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "12" {
			return fmt.Errorf("unexpected key %s", key)
		}
		value, _ := msg.Value.Encode()
		var event models.PaymentEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.EventType != models.EventPaymentCompleted || event.TransactionID != "tx-123" {
			return fmt.Errorf("unexpected event %+v", event)
		}
		return nil
	})

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	publisher := NewPublisher(producer, "order_events", logger)

	if err := publisher.PublishPayment(context.Background(), paymentEvent()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Errorf("Unexpected close error: %v", err)
	}
}

func TestPublisher_PublishPaymentFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	publisher := NewPublisher(producer, "order_events", logger)

	err := publisher.PublishPayment(context.Background(), paymentEvent())
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("Expected ErrOutOfBrokers, got %v", err)
	}
	producer.Close()
}

func TestCarriers_RoundTripTraceHeaders(t *testing.T) {
	outgoing := make(producerCarrier, 0)
	outgoing.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	incoming := make(consumerCarrier, 0, len(outgoing))
	for i := range outgoing {
		incoming = append(incoming, &outgoing[i])
	}

	ctx := propagation.TraceContext{}.Extract(context.Background(), incoming)
	var traceID string
	if sc := traceSpanContext(ctx); sc != "" {
		traceID = sc
	}
	if traceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("Expected trace id to survive the headers, got %q", traceID)
	}
	if len(incoming.Keys()) != 1 {
		t.Errorf("Expected one header key, got %v", incoming.Keys())
	}
}

var errInboxDown = errors.New("inbox unavailable")

// flakyInbox fails its first n pushes, then records messages per user.
type flakyInbox struct {
	mu       sync.Mutex
	failures int
	messages map[int][]string
}

func newFlakyInbox(failures int) *flakyInbox {
	return &flakyInbox{failures: failures, messages: map[int][]string{}}
}

func (f *flakyInbox) Push(_ context.Context, userID int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errInboxDown
	}
	f.messages[userID] = append(f.messages[userID], message)
	return nil
}

func (f *flakyInbox) delivered(userID int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[userID]
}

func newTestConsumer(inbox Notifier, logger *zap.Logger) *NotificationConsumer {
	n := NewNotificationConsumer(nil, "order_events", inbox, logger)
	n.backoff = func(int) time.Duration { return time.Millisecond }
	return n
}

func TestNotificationConsumer_HandleMessage(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	inbox := newFlakyInbox(0)
	n := newTestConsumer(inbox, zap.New(core))

	value, _ := json.Marshal(paymentEvent())
	if err := n.handleMessage(context.Background(), &sarama.ConsumerMessage{Value: value}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := inbox.delivered(3); len(got) != 1 || !strings.Contains(got[0], "tx-123") {
		t.Errorf("Expected one inbox message for the buyer, got %v", got)
	}

	entries := logs.FilterMessage("Payment notification sent").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one notification log, got %d", len(entries))
	}
	if entries[0].ContextMap()["transaction_id"] != "tx-123" {
		t.Errorf("Unexpected log fields: %v", entries[0].ContextMap())
	}
}

func TestNotificationConsumer_MalformedEventIsNotRetried(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := newTestConsumer(newFlakyInbox(0), zap.New(core))

	err := n.handleMessageWithRetry(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")})
	if !errors.Is(err, errMalformedEvent) {
		t.Errorf("Expected errMalformedEvent, got %v", err)
	}
	if logs.FilterMessage("Retrying message handling").Len() != 0 {
		t.Errorf("Expected no retries for a malformed event")
	}
}

func TestNotificationConsumer_RetriesFailedDelivery(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	inbox := newFlakyInbox(2)
	n := newTestConsumer(inbox, zap.New(core))

	value, _ := json.Marshal(paymentEvent())
	if err := n.handleMessageWithRetry(context.Background(), &sarama.ConsumerMessage{Value: value}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := logs.FilterMessage("Retrying message handling").Len(); got != 2 {
		t.Errorf("Expected 2 retries, got %d", got)
	}
	if got := inbox.delivered(3); len(got) != 1 {
		t.Errorf("Expected exactly one delivered message, got %v", got)
	}
	if got := logs.FilterMessage("Payment notification sent").Len(); got != 1 {
		t.Errorf("Expected one sent log, got %d", got)
	}
}

func TestNotificationConsumer_GivesUpAfterMaxRetries(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	inbox := newFlakyInbox(10)
	n := newTestConsumer(inbox, zap.New(core))

	value, _ := json.Marshal(paymentEvent())
	err := n.handleMessageWithRetry(context.Background(), &sarama.ConsumerMessage{Value: value})
	if !errors.Is(err, errInboxDown) {
		t.Errorf("Expected errInboxDown, got %v", err)
	}
	if got := logs.FilterMessage("Retrying message handling").Len(); got != n.maxRetries-1 {
		t.Errorf("Expected %d retries, got %d", n.maxRetries-1, got)
	}
	if logs.FilterMessage("Payment notification sent").Len() != 0 {
		t.Errorf("Expected no sent log for an undelivered notification")
	}
}

func TestNotificationConsumer_Run(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	consumer := mocks.NewConsumer(t, nil)
	value, _ := json.Marshal(paymentEvent())
	consumer.ExpectConsumePartition("order_events", 0, sarama.OffsetNewest).
		YieldMessage(&sarama.ConsumerMessage{Topic: "order_events", Value: value})

	n := NewNotificationConsumer(consumer, "order_events", newFlakyInbox(0), zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for logs.FilterMessage("Payment notification sent").Len() == 0 {
		select {
		case <-deadline:
			t.Fatalf("Timed out waiting for notification")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Unexpected run error: %v", err)
	}
}

func traceSpanContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
