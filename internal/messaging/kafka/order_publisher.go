package kafka

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// OrderEventPublisher публикует события заказа в заданный topic, ключ — ID заказа.
type OrderEventPublisher struct {
	producer *Producer
	topic    string
}

// NewOrderEventPublisher создаёт Kafka-паблишер доменных событий заказа.
func NewOrderEventPublisher(producer *Producer, topic string) *OrderEventPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OrderEventPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *OrderEventPublisher) PublishOrderEvent(_ context.Context, eventType string, order domain.Order, metadata map[string]any) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka order publisher is not initialized")
	}
	return p.producer.PublishEvent(p.topic, order.ID, NewOrderEvent(eventType, order, metadata))
}

var _ domain.EventPublisher = (*OrderEventPublisher)(nil)
