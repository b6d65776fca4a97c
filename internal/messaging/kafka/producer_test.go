package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

func testOrder() domain.Order {
	return domain.Order{
		ID:            "order-123",
		UserID:        "u1",
		TotalAmount:   decimal.RequireFromString("100"),
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Version:       2,
	}
}

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndSucceed()

	err := producer.PublishEvent(TopicOrderEvents, "order-123", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(TopicOrderEvents, "order-123", map[string]any{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	producer := &Producer{logger: log.WithField("component", "kafka-producer-test")}

	if err := producer.PublishEvent(TopicOrderEvents, "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestProducerConfig(t *testing.T) {
	cfg := producerConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("producer config must be valid: %v", err)
	}
	if !cfg.Producer.Idempotent || cfg.Producer.RequiredAcks != sarama.WaitForAll || cfg.Net.MaxOpenRequests != 1 {
		t.Fatalf("idempotent writes require acks=all and a single in-flight request, got %+v", cfg.Producer)
	}
	if !cfg.Producer.Return.Successes {
		t.Fatal("sync producer needs Return.Successes")
	}
	if cfg.ClientID != producerClientID {
		t.Fatalf("unexpected client id %q", cfg.ClientID)
	}

	// Одинаковый ключ заказа всегда даёт одну партицию.
	partitioner := cfg.Producer.Partitioner(TopicOrderEvents)
	first, err := partitioner.Partition(&sarama.ProducerMessage{Key: sarama.StringEncoder("order-123")}, 12)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := partitioner.Partition(&sarama.ProducerMessage{Key: sarama.StringEncoder("order-123")}, 12)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("order events moved between partitions: %d != %d", again, first)
		}
	}
}

func TestBuildMessage_OrderEventHeaders(t *testing.T) {
	msg, err := buildMessage(TopicOrderEvents, "order-123", NewOrderEvent(domain.EventOrderExpired, testOrder(), nil))
	if err != nil {
		t.Fatal(err)
	}

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[string(h.Key)] = string(h.Value)
	}
	if headers[HeaderEventType] != domain.EventOrderExpired {
		t.Fatalf("expected %s header %q, got %q", HeaderEventType, domain.EventOrderExpired, headers[HeaderEventType])
	}
	if headers[HeaderContentType] != "application/json" {
		t.Fatalf("unexpected content type %q", headers[HeaderContentType])
	}

	key, _ := msg.Key.Encode()
	if string(key) != "order-123" {
		t.Fatalf("expected order id as key, got %q", key)
	}

	dlq, err := buildMessage(TopicDeadLetterQueue, "order-123", map[string]any{"error": "boom"})
	if err != nil {
		t.Fatal(err)
	}
	if len(dlq.Headers) != 1 {
		t.Fatalf("non order payloads carry only the content type, got %d headers", len(dlq.Headers))
	}
}

func TestOrderEventPublisher(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var event OrderEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.EventType != domain.EventOrderStatusChanged {
			return fmt.Errorf("unexpected event type %q", event.EventType)
		}
		if event.OrderID != "order-123" || event.UserID != "u1" {
			return fmt.Errorf("unexpected ids %q/%q", event.OrderID, event.UserID)
		}
		if event.TotalAmount != "100.00" {
			return fmt.Errorf("unexpected amount %q", event.TotalAmount)
		}
		if event.Metadata["previous_status"] != "PENDING" {
			return fmt.Errorf("unexpected metadata %v", event.Metadata)
		}
		return nil
	})

	publisher := NewOrderEventPublisher(&Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}, "")

	if publisher.topic != TopicOrderEvents {
		t.Fatalf("expected default topic, got %s", publisher.topic)
	}

	err := publisher.PublishOrderEvent(context.Background(), domain.EventOrderStatusChanged, testOrder(),
		map[string]any{"previous_status": "PENDING"})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOrderEventPublisher_NotInitialized(t *testing.T) {
	var publisher *OrderEventPublisher
	if err := publisher.PublishOrderEvent(context.Background(), domain.EventOrderCreated, testOrder(), nil); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}

func TestNewOrderEvent(t *testing.T) {
	order := testOrder()
	event := NewOrderEvent(domain.EventOrderExpired, order, map[string]any{"reason": "timeout"})

	if event.EventType != domain.EventOrderExpired {
		t.Errorf("expected event type %s, got %s", domain.EventOrderExpired, event.EventType)
	}
	if event.Status != "PENDING" || event.PaymentStatus != "PENDING" {
		t.Errorf("unexpected statuses %s/%s", event.Status, event.PaymentStatus)
	}
	if event.Version != 2 {
		t.Errorf("expected version 2, got %d", event.Version)
	}
	if event.Timestamp.IsZero() || time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestCheckBrokers_NoBrokers(t *testing.T) {
	if err := CheckBrokers(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty broker list")
	}
}

func TestCheckBrokers_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// 192.0.2.0/24 (TEST-NET-1) не маршрутизируется.
	if err := CheckBrokers(ctx, []string{"192.0.2.1:9092"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
