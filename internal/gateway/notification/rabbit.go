package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const (
	priorityInfo    uint8 = 1
	priorityWarning uint8 = 5
)

// amqpChannel — часть *amqp.Channel, которая нужна publisher'у.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher отправляет уведомления в exchange RabbitMQ.
// Routing key: notification.<type>, например notification.warning.
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	logger   *log.Entry
	now      func() time.Time
}

// DialRabbit подключается к брокеру и объявляет topic exchange для уведомлений.
func DialRabbit(url, exchange string, logger *log.Entry) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	p := newRabbitPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newRabbitPublisher(ch amqpChannel, exchange string, logger *log.Entry) *RabbitPublisher {
	if logger == nil {
		logger = log.WithField("component", "notification-rabbit")
	}
	return &RabbitPublisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger,
		now:      time.Now,
	}
}

// Send публикует уведомление как persistent JSON сообщение.
func (p *RabbitPublisher) Send(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	priority := priorityInfo
	if n.Type == domain.SeverityWarning {
		priority = priorityWarning
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		ContentType:  "application/json",
		Body:         body,
		Priority:     priority,
		Headers: amqp.Table{
			"user_id": n.UserID,
		},
	}

	key := "notification." + strings.ToLower(string(n.Type))
	if err := p.channel.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("%w: publish notification: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *RabbitPublisher) Close() error {
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ domain.NotificationGateway = (*RabbitPublisher)(nil)
