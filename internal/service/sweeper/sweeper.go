package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const (
	defaultSweepInterval = 60 * time.Second
	defaultGracePeriod   = 15 * time.Minute
)

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_abandonment_sweep_runs_total",
		Help: "Total number of abandonment sweeps grouped by result.",
	}, []string{"result"})
	sweepExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_abandonment_expired_total",
		Help: "Total number of abandoned orders expired by the sweeper.",
	})
	sweepFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_abandonment_failures_total",
		Help: "Total number of abandoned orders the sweeper failed to expire.",
	})
	sweepLastBatch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orders_abandonment_last_batch",
		Help: "Number of abandoned orders found during the last sweep.",
	})
)

// PendingLister отдаёт заказы в статусе, созданные раньше cutoff.
type PendingLister interface {
	ListByStatusCreatedBefore(ctx context.Context, status domain.OrderStatus, cutoff time.Time) ([]domain.Order, error)
}

// Expirer просрочивает заказ, если он всё ещё ожидает оплату.
type Expirer interface {
	ExpireIfPending(ctx context.Context, orderID string) (domain.Order, bool, error)
}

// Options задает параметры sweeper.
type Options struct {
	Logger      *log.Entry
	Interval    time.Duration
	GracePeriod time.Duration
	Now         func() time.Time
}

// Option настраивает Sweeper.
type Option func(*Options)

// WithLogger задает logger для sweeper.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между проходами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithGracePeriod задает окно оплаты, после которого заказ считается брошенным.
func WithGracePeriod(grace time.Duration) Option {
	return func(opts *Options) {
		opts.GracePeriod = grace
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

// Result — итог одного прохода.
type Result struct {
	Found   int
	Expired int
	Skipped int
	Failed  int
}

// Sweeper периодически просрочивает неоплаченные заказы и освобождает их резерв.
type Sweeper struct {
	orders   PendingLister
	expirer  Expirer
	logger   *log.Entry
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

// New создает sweeper брошенных заказов.
func New(orders PendingLister, expirer Expirer, options ...Option) *Sweeper {
	opts := Options{
		Interval:    defaultSweepInterval,
		GracePeriod: defaultGracePeriod,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "abandonment-sweeper")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Sweeper{
		orders:   orders,
		expirer:  expirer,
		logger:   logger,
		interval: opts.Interval,
		grace:    opts.GracePeriod,
		now:      opts.Now,
	}
}

// Run выполняет проход сразу и затем по таймеру, до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.WithFields(log.Fields{
		"interval":     s.interval,
		"grace_period": s.grace,
	}).Info("abandonment sweeper started")
	defer s.logger.Info("abandonment sweeper stopped")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	result, err := s.SweepOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		sweepRunsTotal.WithLabelValues("error").Inc()
		s.logger.WithError(err).Warn("abandonment sweep failed")
		return
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepLastBatch.Set(float64(result.Found))
	if result.Found > 0 {
		s.logger.WithFields(log.Fields{
			"found":   result.Found,
			"expired": result.Expired,
			"skipped": result.Skipped,
			"failed":  result.Failed,
		}).Info("abandonment sweep completed")
	}
}

// SweepOnce просрочивает все PENDING заказы старше окна оплаты.
// Ошибка по одному заказу не прерывает обработку остальных.
func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	cutoff := s.now().Add(-s.grace)

	orders, err := s.orders.ListByStatusCreatedBefore(ctx, domain.OrderStatusPending, cutoff)
	if err != nil {
		return Result{}, err
	}

	result := Result{Found: len(orders)}
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, expired, err := s.expirer.ExpireIfPending(ctx, order.ID)
		switch {
		case err != nil:
			result.Failed++
			sweepFailuresTotal.Inc()
			s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to expire abandoned order")
		case expired:
			result.Expired++
			sweepExpiredTotal.Inc()
			s.logger.WithField("order_id", order.ID).Info("abandoned order expired")
		default:
			result.Skipped++
		}
	}

	return result, nil
}
