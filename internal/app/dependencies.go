package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/gateway/notification"
	"github.com/vladislavdragonenkov/ordersvc/internal/gateway/product"
	healthcheck "github.com/vladislavdragonenkov/ordersvc/internal/health"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/sweeper"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/postgres"
	"github.com/vladislavdragonenkov/ordersvc/internal/version"
)

// Dependencies содержит собранные компоненты сервиса.
type Dependencies struct {
	Store     domain.OrderStore
	Inventory domain.InventoryGateway
	Notifier  domain.NotificationGateway
	Producer  *kafka.Producer
	Orders    *lifecycle.Service
	Sweeper   *sweeper.Sweeper
	Health    *healthcheck.Handler
	Logger    *log.Entry

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// NewDependencies собирает хранилище, шлюзы, шину событий и сервис заказов.
// При ошибке уже открытые ресурсы закрываются.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (deps *Dependencies, err error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps = &Dependencies{
		Logger: logger,
		Health: healthcheck.NewHandler(version.Current().Version),
	}
	defer func() {
		if err != nil {
			deps.Close()
			deps = nil
		}
	}()

	if err = deps.initStorage(ctx, cfg); err != nil {
		return deps, err
	}
	if err = deps.initNotifier(cfg); err != nil {
		return deps, err
	}

	deps.Inventory = product.NewClient(cfg.ProductServiceURL, cfg.GatewayTimeout,
		product.WithLogger(logger.WithField("component", "product-client")))

	producer, kafkaErr := initKafkaProducer(cfg.KafkaBrokers, logger)
	if kafkaErr == nil && producer != nil {
		deps.Producer = producer
		deps.addCloser("kafka producer", producer.Close)
		brokers := cfg.KafkaBrokers
		deps.Health.RegisterChecker("kafka", healthcheck.NewOptionalChecker("kafka", func(ctx context.Context) error {
			return kafka.CheckBrokers(ctx, brokers)
		}))
	}

	opts := []lifecycle.Option{
		lifecycle.WithLogger(logger.WithField("component", "lifecycle")),
		lifecycle.WithMetrics(metrics.NewLifecycleMetrics()),
		lifecycle.WithGatewayTimeout(cfg.GatewayTimeout),
		lifecycle.WithPaymentWindow(cfg.AbandonmentGracePeriod),
		lifecycle.WithFrontendURL(cfg.FrontendURL),
	}
	if deps.Producer != nil {
		opts = append(opts, lifecycle.WithEventPublisher(kafka.NewOrderEventPublisher(deps.Producer, cfg.KafkaOrderTopic)))
	}
	deps.Orders = lifecycle.New(deps.Store, deps.Inventory, deps.Notifier, opts...)

	deps.Sweeper = sweeper.New(deps.Store, deps.Orders,
		sweeper.WithLogger(logger.WithField("component", "abandonment-sweeper")),
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithGracePeriod(cfg.AbandonmentGracePeriod),
	)

	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context, cfg Config) error {
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("init postgres storage: %w", err)
		}
		d.addCloser("postgres", store.Close)

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				return fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		d.Store = postgres.NewOrderStore(store)
		d.Health.RegisterChecker("postgres", healthcheck.NewCriticalChecker("postgres", store.Ping))
		d.Logger.Info("postgres storage initialized")
	default:
		d.Store = memory.NewOrderStore()
		d.Logger.Info("in-memory storage initialized")
	}
	return nil
}

func (d *Dependencies) initNotifier(cfg Config) error {
	switch cfg.NotificationTransport {
	case NotificationTransportRabbitMQ:
		publisher, err := notification.DialRabbit(cfg.RabbitMQURL, cfg.RabbitMQExchange,
			d.Logger.WithField("component", "notification-rabbit"))
		if err != nil {
			return fmt.Errorf("init rabbitmq notifier: %w", err)
		}
		d.addCloser("rabbitmq", publisher.Close)
		d.Notifier = publisher
	default:
		d.Notifier = notification.NewClient(cfg.NotificationServiceURL, cfg.GatewayTimeout,
			d.Logger.WithField("component", "notification-client"))
	}
	return nil
}

func (d *Dependencies) addCloser(name string, closeFn func() error) {
	d.closers = append(d.closers, namedCloser{name: name, close: closeFn})
}

// Close освобождает ресурсы в обратном порядке открытия.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		c := d.closers[i]
		if err := c.close(); err != nil {
			d.Logger.WithError(err).WithField("resource", c.name).Warn("failed to close resource")
			continue
		}
		d.Logger.WithField("resource", c.name).Debug("resource closed")
	}
	d.closers = nil
}
