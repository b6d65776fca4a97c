package lifecycle

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
)

const (
	defaultGatewayTimeout = 5 * time.Second
	defaultPaymentWindow  = 15 * time.Minute
	defaultFrontendURL    = "http://localhost:5173"

	maxShippingAddressLen     = 500
	maxSpecialInstructionsLen = 1000

	maxSaveRetries = 3
	baseRetryDelay = 10 * time.Millisecond
)

// Option настраивает Service.
type Option func(*Service)

// WithLogger задает logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics подключает prometheus-метрики.
func WithMetrics(m *metrics.LifecycleMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEventPublisher подключает публикацию доменных событий.
func WithEventPublisher(events domain.EventPublisher) Option {
	return func(s *Service) {
		s.events = events
	}
}

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGatewayTimeout ограничивает каждый вызов внешнего сервиса.
func WithGatewayTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.gatewayTimeout = timeout
	}
}

// WithPaymentWindow задает окно оплаты, о котором сообщаем пользователю.
func WithPaymentWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.paymentWindow = window
		}
	}
}

// WithFrontendURL задает базовый адрес для ссылок в уведомлениях.
func WithFrontendURL(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.frontendURL = strings.TrimRight(url, "/")
		}
	}
}

// Service координирует жизненный цикл заказа: резервы, статусы, уведомления.
type Service struct {
	store     domain.OrderStore
	inventory domain.InventoryGateway
	notifier  domain.NotificationGateway
	events    domain.EventPublisher

	logger  *log.Entry
	metrics *metrics.LifecycleMetrics
	now     func() time.Time
	locks   *keyedMutex

	gatewayTimeout time.Duration
	paymentWindow  time.Duration
	frontendURL    string
}

// New создаёт сервис жизненного цикла заказов.
func New(store domain.OrderStore, inventory domain.InventoryGateway, notifier domain.NotificationGateway, opts ...Option) *Service {
	s := &Service{
		store:          store,
		inventory:      inventory,
		notifier:       notifier,
		now:            func() time.Time { return time.Now().UTC() },
		locks:          newKeyedMutex(),
		gatewayTimeout: defaultGatewayTimeout,
		paymentWindow:  defaultPaymentWindow,
		frontendURL:    defaultFrontendURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "lifecycle")
	}
	return s
}

// gatewayContext ограничивает вызов внешнего сервиса таймаутом.
func (s *Service) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.gatewayTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.gatewayTimeout)
}

func (s *Service) observe(operation string) func() {
	if s.metrics == nil {
		return func() {}
	}
	return s.metrics.ObserveOperation(operation)
}
