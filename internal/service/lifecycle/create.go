package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/telemetry"
)

// ItemRequest — позиция в запросе на создание заказа.
type ItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
}

// CreateOrderRequest — входные данные CreateOrder.
type CreateOrderRequest struct {
	UserID              string        `json:"userId"`
	Items               []ItemRequest `json:"items"`
	ShippingAddress     string        `json:"shippingAddress"`
	SpecialInstructions string        `json:"specialInstructions"`
}

// Validate проверяет форму запроса без обращения к внешним сервисам.
func (r CreateOrderRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrUserRequired)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrItemsRequired)
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item %d: productId is required", domain.ErrValidation, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d: %w", domain.ErrValidation, i, domain.ErrItemQtyInvalid)
		}
	}
	if strings.TrimSpace(r.ShippingAddress) == "" {
		return fmt.Errorf("%w: shippingAddress is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(r.ShippingAddress) > maxShippingAddressLen {
		return fmt.Errorf("%w: shippingAddress exceeds %d characters", domain.ErrValidation, maxShippingAddressLen)
	}
	if utf8.RuneCountInString(r.SpecialInstructions) > maxSpecialInstructionsLen {
		return fmt.Errorf("%w: specialInstructions exceeds %d characters", domain.ErrValidation, maxSpecialInstructionsLen)
	}
	return nil
}

// CreateOrder проверяет товары, резервирует их по порядку и сохраняет заказ.
// При отказе резерва уже выданные резервы снимаются в обратном порядке.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (order domain.Order, err error) {
	defer s.observe("create")()
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.CreateOrder")
	telemetry.AddSpanAttributes(span,
		attribute.String("user.id", req.UserID),
		attribute.Int("order.items", len(req.Items)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	logger := s.logger.WithField("user_id", req.UserID)

	if err = req.Validate(); err != nil {
		s.recordCreateFailed("validation")
		return domain.Order{}, err
	}

	lines, err := s.snapshotLines(ctx, req.Items)
	if err != nil {
		s.recordCreateFailed(failureReason(err))
		logger.WithError(err).Info("order rejected during validation")
		return domain.Order{}, err
	}

	now := s.now()
	draft := domain.Order{
		UserID:              req.UserID,
		Items:               lines,
		TotalAmount:         domain.SumLines(lines),
		Status:              domain.OrderStatusPending,
		PaymentStatus:       domain.PaymentStatusPending,
		ShippingAddress:     req.ShippingAddress,
		SpecialInstructions: req.SpecialInstructions,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if problems := draft.ValidateInvariants(); len(problems) > 0 {
		s.recordCreateFailed("validation")
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrValidation, errors.Join(problems...))
	}

	if err = s.reserveAll(ctx, lines, logger); err != nil {
		s.recordCreateFailed("reservation")
		return domain.Order{}, err
	}

	order, err = s.store.Create(ctx, draft)
	if err != nil {
		logger.WithError(err).Error("failed to persist order, releasing reservations")
		s.compensate(ctx, lines, logger)
		s.recordCreateFailed("store")
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	logger.WithFields(log.Fields{
		"order_id": order.ID,
		"total":    order.TotalAmount.StringFixed(2),
	}).Info("order created")

	s.notify(ctx, domain.Notification{
		UserID: order.UserID,
		Message: fmt.Sprintf("Your order #%s has been successfully placed. Please complete payment within %d minutes.",
			order.ID, int(s.paymentWindow.Minutes())),
		Type:      domain.SeverityInfo,
		ActionURL: s.frontendURL + "/payment/" + order.ID,
	})
	s.publish(ctx, domain.EventOrderCreated, order, map[string]any{
		"items_count":  len(order.Items),
		"total_amount": order.TotalAmount.StringFixed(2),
	})

	return order, nil
}

// snapshotLines загружает все товары и проверяет их до первого резерва.
func (s *Service) snapshotLines(ctx context.Context, items []ItemRequest) ([]domain.OrderLine, error) {
	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		gctx, cancel := s.gatewayContext(ctx)
		product, err := s.inventory.GetProduct(gctx, item.ProductID)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("get product %s: %w", item.ProductID, err)
		}
		if !product.Available {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductUnavailable, item.ProductID)
		}
		if product.StockQuantity < int(item.Quantity) {
			return nil, fmt.Errorf("%w: product %s has %d, requested %d",
				domain.ErrInsufficientStock, item.ProductID, product.StockQuantity, item.Quantity)
		}
		if product.ID == "" {
			product.ID = item.ProductID
		}
		lines = append(lines, domain.NewOrderLine(product, item.Quantity))
	}
	return lines, nil
}

// reserveAll резервирует позиции в порядке запроса.
func (s *Service) reserveAll(ctx context.Context, lines []domain.OrderLine, logger *log.Entry) error {
	for i, line := range lines {
		gctx, cancel := s.gatewayContext(ctx)
		err := s.inventory.Reserve(gctx, line.ProductID)
		cancel()
		if err == nil {
			continue
		}

		logger.WithError(err).WithFields(log.Fields{
			"product_id": line.ProductID,
			"line":       i + 1,
		}).Warn("reservation failed, compensating")
		s.compensate(ctx, lines[:i], logger)
		return fmt.Errorf("%w: product %s: %w", domain.ErrReservationFailed, line.ProductID, err)
	}
	return nil
}

// compensate снимает выданные резервы в обратном порядке.
// Отмена запроса не прерывает компенсацию, действует только таймаут шлюза.
func (s *Service) compensate(ctx context.Context, granted []domain.OrderLine, logger *log.Entry) {
	ctx = context.WithoutCancel(ctx)
	for i := len(granted) - 1; i >= 0; i-- {
		productID := granted[i].ProductID
		if s.metrics != nil {
			s.metrics.RecordCompensation()
		}
		gctx, cancel := s.gatewayContext(ctx)
		err := s.inventory.Release(gctx, productID)
		cancel()
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordReleaseFailure()
			}
			logger.WithError(err).WithField("product_id", productID).Error("compensating release failed")
		}
	}
}

func (s *Service) recordCreateFailed(reason string) {
	if s.metrics != nil {
		s.metrics.RecordCreateFailed(reason)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case domain.IsValidation(err):
		return "validation"
	default:
		return "gateway"
	}
}
