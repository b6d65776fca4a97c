package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// Topics по умолчанию.
const (
	TopicOrderEvents     = "orders.events"
	TopicPaymentEvents   = "payments.events"
	TopicDeadLetterQueue = "orders.dlq"
)

// HeaderRetryCount — число попыток, уже сделанных до текущего чтения (выставляется при переотправке из DLQ).
const HeaderRetryCount = "x-retry-count"

// OrderEvent — конверт доменного события заказа.
type OrderEvent struct {
	EventType     string         `json:"event_type"`
	OrderID       string         `json:"order_id"`
	UserID        string         `json:"user_id"`
	Status        string         `json:"status"`
	PaymentStatus string         `json:"payment_status"`
	TotalAmount   string         `json:"total_amount"`
	Version       int64          `json:"version"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewOrderEvent создает событие из текущего состояния заказа.
func NewOrderEvent(eventType string, order domain.Order, metadata map[string]any) *OrderEvent {
	return &OrderEvent{
		EventType:     eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   order.TotalAmount.StringFixed(2),
		Version:       order.Version,
		Timestamp:     time.Now().UTC(),
		Metadata:      metadata,
	}
}

// PaymentResult — результат оплаты от платёжного сервиса.
type PaymentResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

const (
	PaymentResultCompleted = "COMPLETED"
	PaymentResultFailed    = "FAILED"
)
