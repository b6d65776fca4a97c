package lifecycle

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/telemetry"
)

// TransitionStatus переводит заказ в новый статус.
// Переход в CANCELLED или EXPIRED снимает резерв каждой позиции (best-effort).
func (s *Service) TransitionStatus(ctx context.Context, id string, status domain.OrderStatus) (order domain.Order, err error) {
	defer s.observe("transition")()
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.TransitionStatus")
	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: %w: %q", domain.ErrValidation, domain.ErrInvalidStatus, status)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	previous, order, _, err := s.updateWithRetry(ctx, id, func(o *domain.Order) bool {
		o.ApplyStatus(status, s.now())
		return true
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.afterTransition(ctx, previous, order)
	return order, nil
}

// ExpireIfPending переводит заказ в EXPIRED, только если он всё ещё PENDING.
// Второй результат сообщает, был ли заказ просрочен этим вызовом.
func (s *Service) ExpireIfPending(ctx context.Context, id string) (order domain.Order, expired bool, err error) {
	defer s.observe("expire")()
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.ExpireIfPending")
	telemetry.AddSpanAttributes(span, attribute.String("order.id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	return s.transitionIf(ctx, id, domain.OrderStatusExpired, func(o domain.Order) bool {
		return o.Status == domain.OrderStatusPending
	})
}

// TransitionIfReserved переводит заказ, только пока он держит резерв.
// Заказ в CANCELLED или EXPIRED не меняется, второй результат тогда false.
func (s *Service) TransitionIfReserved(ctx context.Context, id string, status domain.OrderStatus) (order domain.Order, applied bool, err error) {
	defer s.observe("transition")()
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.TransitionIfReserved")
	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if !status.Valid() {
		return domain.Order{}, false, fmt.Errorf("%w: %w: %q", domain.ErrValidation, domain.ErrInvalidStatus, status)
	}

	return s.transitionIf(ctx, id, status, func(o domain.Order) bool {
		return !o.Status.ReleasesReservation()
	})
}

// transitionIf применяет переход, если guard разрешает его для свежепрочитанного заказа.
func (s *Service) transitionIf(ctx context.Context, id string, status domain.OrderStatus, guard func(domain.Order) bool) (domain.Order, bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	previous, order, changed, err := s.updateWithRetry(ctx, id, func(o *domain.Order) bool {
		if !guard(*o) {
			return false
		}
		o.ApplyStatus(status, s.now())
		return true
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	if !changed {
		s.logger.WithFields(log.Fields{
			"order_id": id,
			"status":   order.Status,
			"target":   status,
		}).Debug("transition skipped")
		return order, false, nil
	}

	s.afterTransition(ctx, previous, order)
	return order, true, nil
}

// DeleteOrder снимает резерв (если он ещё держится) и удаляет заказ.
func (s *Service) DeleteOrder(ctx context.Context, id string) (err error) {
	defer s.observe("delete")()
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.DeleteOrder")
	telemetry.AddSpanAttributes(span, attribute.String("order.id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	unlock := s.locks.Lock(id)
	defer unlock()

	order, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get order %s: %w", id, err)
	}

	logger := s.logger.WithField("order_id", id)
	if !order.Status.ReleasesReservation() {
		s.releaseLines(ctx, order, logger)
	}

	if err = s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderDeleted()
	}
	logger.Info("order deleted")
	s.publish(ctx, domain.EventOrderDeleted, order, nil)
	return nil
}

// afterTransition выполняет побочные эффекты уже сохранённого перехода.
func (s *Service) afterTransition(ctx context.Context, previous domain.OrderStatus, order domain.Order) {
	logger := s.logger.WithFields(log.Fields{
		"order_id":        order.ID,
		"status":          order.Status,
		"previous_status": previous,
	})

	if order.Status.ReleasesReservation() && !previous.ReleasesReservation() {
		s.releaseLines(ctx, order, logger)
	}
	if s.metrics != nil {
		s.metrics.RecordTransition(string(order.Status))
	}
	logger.Info("order status updated")

	eventType := domain.EventOrderStatusChanged
	notification := domain.Notification{
		UserID:    order.UserID,
		Message:   fmt.Sprintf("Your order #%s status has been updated to %s", order.ID, order.Status),
		Type:      domain.SeverityInfo,
		ActionURL: s.frontendURL + "/orders/" + order.ID,
	}
	if order.Status == domain.OrderStatusExpired {
		eventType = domain.EventOrderExpired
		notification.Message = fmt.Sprintf("Your order #%s has expired due to incomplete payment.", order.ID)
		notification.Type = domain.SeverityWarning
	}

	s.notify(ctx, notification)
	s.publish(ctx, eventType, order, map[string]any{
		"previous_status": string(previous),
	})
}

// releaseLines снимает резерв каждой позиции; ошибки логируются и не прерывают цикл.
// Статус уже сохранён, поэтому снятие не зависит от отмены ctx.
func (s *Service) releaseLines(ctx context.Context, order domain.Order, logger *log.Entry) {
	ctx = context.WithoutCancel(ctx)
	for _, line := range order.Items {
		gctx, cancel := s.gatewayContext(ctx)
		err := s.inventory.Release(gctx, line.ProductID)
		cancel()
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordReleaseFailure()
			}
			logger.WithError(err).WithField("product_id", line.ProductID).Error("failed to release reservation")
		}
	}
}

// updateWithRetry читает заказ, применяет change и сохраняет с проверкой версии.
// При конфликте версий заказ перечитывается, до maxSaveRetries попыток.
// Если change вернул false, запись не выполняется.
func (s *Service) updateWithRetry(ctx context.Context, id string, change func(*domain.Order) bool) (domain.OrderStatus, domain.Order, bool, error) {
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		order, err := s.store.Get(ctx, id)
		if err != nil {
			return "", domain.Order{}, false, fmt.Errorf("get order %s: %w", id, err)
		}

		previous := order.Status
		if !change(&order) {
			return previous, order, false, nil
		}

		saved, err := s.store.Save(ctx, order)
		if err == nil {
			return previous, saved, true, nil
		}
		if !domain.IsVersionConflict(err) || attempt == maxSaveRetries-1 {
			return "", domain.Order{}, false, fmt.Errorf("save order %s: %w", id, err)
		}

		s.logger.WithFields(log.Fields{
			"order_id": id,
			"attempt":  attempt + 1,
			"version":  order.Version,
		}).Warn("version conflict detected, retrying")
		if s.metrics != nil {
			s.metrics.RecordConflictRetry()
		}

		// Exponential backoff
		delay := baseRetryDelay * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return "", domain.Order{}, false, ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", domain.Order{}, false, domain.ErrOrderVersionConflict
}
