package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// StatusTransitioner — часть сервиса жизненного цикла, нужная обработчику оплат.
type StatusTransitioner interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	TransitionIfReserved(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, bool, error)
}

// NewPaymentResultHandler переводит заказ по результату оплаты:
// COMPLETED → CONFIRMED, FAILED → CANCELLED.
// Битые сообщения, неизвестные заказы и результаты для заказов с уже снятым
// резервом (CANCELLED, EXPIRED) подтверждаются без перехода.
func NewPaymentResultHandler(orders StatusTransitioner, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "payment-consumer")
	}

	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		result, err := ParsePaymentResult(message)
		if err != nil {
			logger.WithError(err).WithField("offset", message.Offset).Error("skipping malformed payment result")
			return nil
		}

		entry := logger.WithFields(log.Fields{
			"order_id":       result.OrderID,
			"payment_status": result.Status,
		})

		var target domain.OrderStatus
		switch strings.ToUpper(result.Status) {
		case PaymentResultCompleted:
			target = domain.OrderStatusConfirmed
		case PaymentResultFailed:
			target = domain.OrderStatusCancelled
		default:
			entry.Warn("skipping payment result with unknown status")
			return nil
		}

		current, err := orders.GetOrder(ctx, result.OrderID)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				entry.Warn("payment result for unknown order")
				return nil
			}
			return err
		}
		// Повторная доставка того же результата.
		if current.Status == target {
			entry.Debug("order already in target status")
			return nil
		}

		if current.Status.ReleasesReservation() {
			entry.WithField("status", current.Status).Warn("late payment result for released order, skipping")
			return nil
		}

		updated, applied, err := orders.TransitionIfReserved(ctx, result.OrderID, target)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				entry.Warn("order deleted before payment result was applied")
				return nil
			}
			return err
		}
		if !applied {
			entry.WithField("status", updated.Status).Warn("order released before payment result was applied, skipping")
			return nil
		}

		entry.WithField("status", target).Info("payment result applied")
		return nil
	}
}

// ParsePaymentResult парсит PaymentResult из сообщения
func ParsePaymentResult(message *sarama.ConsumerMessage) (*PaymentResult, error) {
	var result PaymentResult
	if err := json.Unmarshal(message.Value, &result); err != nil {
		return nil, err
	}
	if result.OrderID == "" {
		return nil, errors.New("order_id is required")
	}
	return &result, nil
}
