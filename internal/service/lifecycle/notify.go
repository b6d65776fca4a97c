package lifecycle

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// notify отправляет уведомление; ошибка только логируется.
func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	gctx, cancel := s.gatewayContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.notifier.Send(gctx, n); err != nil {
		if s.metrics != nil {
			s.metrics.RecordNotifyFailure()
		}
		s.logger.WithError(err).WithField("user_id", n.UserID).Warn("failed to send notification")
	}
}

// publish отправляет доменное событие, если publisher подключён.
func (s *Service) publish(ctx context.Context, eventType string, order domain.Order, metadata map[string]any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(context.WithoutCancel(ctx), eventType, order, metadata); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"event_type": eventType,
		}).Warn("failed to publish order event")
	}
}
