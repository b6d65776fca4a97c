package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics содержит метрики жизненного цикла заказа.
type LifecycleMetrics struct {
	ordersCreated      prometheus.Counter
	ordersCreateFailed *prometheus.CounterVec
	compensations      prometheus.Counter
	releaseFailures    prometheus.Counter
	statusTransitions  *prometheus.CounterVec
	ordersDeleted      prometheus.Counter
	conflictRetries    prometheus.Counter
	notifyFailures     prometheus.Counter

	operationDuration *prometheus.HistogramVec

	// Gauge для операций в полёте
	activeOperations prometheus.Gauge
}

// NewLifecycleMetrics создаёт метрики в DefaultRegisterer.
func NewLifecycleMetrics() *LifecycleMetrics {
	return NewLifecycleMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewLifecycleMetricsWithRegisterer создаёт метрики в переданном реестре.
func NewLifecycleMetricsWithRegisterer(registerer prometheus.Registerer) *LifecycleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LifecycleMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersCreateFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_create_failed_total",
			Help: "Total number of rejected order creations by reason",
		}, []string{"reason"}),
		compensations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_reservation_compensations_total",
			Help: "Total number of compensating releases after a failed reservation",
		}),
		releaseFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_release_failures_total",
			Help: "Total number of failed reservation releases",
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_status_transitions_total",
			Help: "Total number of order status transitions by target status",
		}, []string{"status"}),
		ordersDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_deleted_total",
			Help: "Total number of deleted orders",
		}),
		conflictRetries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_version_conflict_retries_total",
			Help: "Total number of retries caused by optimistic locking conflicts",
		}),
		notifyFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_notification_failures_total",
			Help: "Total number of notifications that could not be delivered",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orders_operation_duration_seconds",
			Help:    "Duration of order lifecycle operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		activeOperations: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orders_active_operations",
			Help: "Number of order lifecycle operations in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *LifecycleMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordCreateFailed учитывает отказ в создании заказа.
func (m *LifecycleMetrics) RecordCreateFailed(reason string) {
	m.ordersCreateFailed.WithLabelValues(reason).Inc()
}

// RecordCompensation учитывает компенсирующее снятие резерва.
func (m *LifecycleMetrics) RecordCompensation() {
	m.compensations.Inc()
}

func (m *LifecycleMetrics) RecordReleaseFailure() {
	m.releaseFailures.Inc()
}

// RecordTransition учитывает смену статуса.
func (m *LifecycleMetrics) RecordTransition(status string) {
	m.statusTransitions.WithLabelValues(status).Inc()
}

func (m *LifecycleMetrics) RecordOrderDeleted() {
	m.ordersDeleted.Inc()
}

// RecordConflictRetry учитывает повтор после конфликта версий.
func (m *LifecycleMetrics) RecordConflictRetry() {
	m.conflictRetries.Inc()
}

func (m *LifecycleMetrics) RecordNotifyFailure() {
	m.notifyFailures.Inc()
}

// ObserveOperation фиксирует длительность операции и возвращает функцию завершения.
//
//	done := m.ObserveOperation("create")
//	defer done()
func (m *LifecycleMetrics) ObserveOperation(operation string) func() {
	start := time.Now()
	m.activeOperations.Inc()
	return func() {
		m.activeOperations.Dec()
		m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
