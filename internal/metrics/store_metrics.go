package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics содержит метрики операций OrderStore.
// Все методы безопасны для nil-получателя: store без метрик просто ничего не пишет.
type StoreMetrics struct {
	// Операции и их длительность
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	// Переходы статусов и конфликты
	transitions *prometheus.CounterVec
	conflicts   prometheus.Counter

	// Публикация событий заказа
	eventsPublished *prometheus.CounterVec

	// Заказы, оформленные с момента старта процесса
	ordersPlaced prometheus.Counter
}

// NewStoreMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewStoreMetricsWithRegisterer(registerer prometheus.Registerer) *StoreMetrics {
	return &StoreMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_store_operations_total",
			Help: "Total number of order store operations by result kind",
		}, []string{"op", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "pos_store_operation_duration_seconds",
			Help:    "Duration of order store operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"op"}),
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_order_status_transitions_total",
			Help: "Total number of applied order status transitions",
		}, []string{"from", "to"}),
		conflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_order_version_conflicts_total",
			Help: "Total number of status updates lost to a concurrent writer",
		}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_order_events_published_total",
			Help: "Total number of order lifecycle events handed to the publisher",
		}, []string{"type", "result"}),
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_orders_placed_total",
			Help: "Total number of orders placed",
		}),
	}
}

// RecordOperation записывает итог операции: result — вид ошибки или "ok".
func (m *StoreMetrics) RecordOperation(op, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTransition увеличивает счётчик применённых переходов.
func (m *StoreMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordConflict увеличивает счётчик конфликтов версий.
func (m *StoreMetrics) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *StoreMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// RecordEventPublished записывает результат публикации события.
func (m *StoreMetrics) RecordEventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}
