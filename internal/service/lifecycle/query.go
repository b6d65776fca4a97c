package lifecycle

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/telemetry"
)

// GetOrder возвращает заказ или ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, id string) (order domain.Order, err error) {
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.GetOrder")
	telemetry.AddSpanAttributes(span, attribute.String("order.id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	order, err = s.store.Get(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return order, nil
}

// ListOrdersForUser возвращает все заказы пользователя.
func (s *Service) ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders for user %s: %w", userID, err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// ListOrdersForArtist возвращает оплаченные заказы, содержащие работы автора.
func (s *Service) ListOrdersForArtist(ctx context.Context, artistID string) ([]domain.Order, error) {
	orders, err := s.store.ListByArtist(ctx, artistID)
	if err != nil {
		return nil, fmt.Errorf("list orders for artist %s: %w", artistID, err)
	}

	paid := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			paid = append(paid, order)
		}
	}
	return paid, nil
}
