// Package orders содержит OrderStore — единственный источник истины о заказах POS.
package orders

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// Имена операций для логов и метрик.
const (
	opPlaceOrder       = "place_order"
	opListOrders       = "list_orders"
	opGetStatus        = "get_status"
	opTransitionStatus = "transition_status"
	opDeleteOrder      = "delete_order"
	opTimeline         = "timeline"
)

// Store проверяет входные данные, применяет таблицу переходов и делегирует
// хранение репозиторию. Состояние заказов в памяти не кешируется: каждая
// операция обращается к хранилищу.
type Store struct {
	orders    domain.OrderRepository
	timeline  domain.TimelineRepository
	publisher domain.EventPublisher
	metrics   *metrics.StoreMetrics
	logger    *log.Entry
	now       func() time.Time
}

// Option настраивает Store.
type Option func(*Store)

// WithTimeline подключает источник событий аудита.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(s *Store) { s.timeline = timeline }
}

// WithPublisher подключает публикацию событий заказа (Kafka).
func WithPublisher(publisher domain.EventPublisher) Option {
	return func(s *Store) { s.publisher = publisher }
}

// WithMetrics подключает prometheus-метрики.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore создаёт OrderStore поверх репозитория.
func NewStore(orders domain.OrderRepository, opts ...Option) *Store {
	s := &Store{
		orders: orders,
		logger: log.New().WithField("component", "order-store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeline == nil {
		if timeline, ok := orders.(domain.TimelineRepository); ok {
			s.timeline = timeline
		}
	}
	return s
}

// PlaceOrder проверяет параметры и атомарно сохраняет новый заказ в статусе pending.
func (s *Store) PlaceOrder(ctx context.Context, params domain.NewOrderParams) (order domain.Order, err error) {
	defer s.observe(opPlaceOrder, time.Now(), &err)

	order, err = domain.NewOrder(params, s.now())
	if err != nil {
		return domain.Order{}, s.fail(opPlaceOrder, 0, err)
	}

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return domain.Order{}, s.fail(opPlaceOrder, 0, err)
	}

	s.metrics.RecordOrderPlaced()
	s.logger.WithFields(log.Fields{
		"order_id":     created.ID,
		"order_number": created.OrderNumber,
	}).Info("order placed")

	s.publish(ctx, domain.OrderEvent{
		Type:        domain.OrderEventPlaced,
		OrderID:     created.ID,
		OrderNumber: created.OrderNumber,
		Status:      created.Status,
		Timestamp:   created.CreatedAt,
	})

	return created, nil
}

// ListOrders возвращает заказы от новых к старым.
func (s *Store) ListOrders(ctx context.Context, filter domain.OrderFilter) (orders []domain.Order, err error) {
	defer s.observe(opListOrders, time.Now(), &err)

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, s.fail(opListOrders, 0, domain.ErrStatusUnknown)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, s.fail(opListOrders, 0, domain.ErrPaginationInvalid)
	}

	orders, err = s.orders.List(ctx, filter)
	if err != nil {
		return nil, s.fail(opListOrders, 0, err)
	}
	return orders, nil
}

// GetStatus возвращает только текущий статус заказа.
func (s *Store) GetStatus(ctx context.Context, id int64) (status domain.OrderStatus, err error) {
	defer s.observe(opGetStatus, time.Now(), &err)

	if id <= 0 {
		return "", s.fail(opGetStatus, id, domain.ErrOrderNotFound)
	}

	status, err = s.orders.Status(ctx, id)
	if err != nil {
		return "", s.fail(opGetStatus, id, err)
	}
	return status, nil
}

// TransitionStatus переводит заказ в новый статус через compare-and-set по версии.
// Проигравший конкурентную гонку получает ErrConflict и может повторить запрос.
func (s *Store) TransitionStatus(ctx context.Context, id int64, next domain.OrderStatus) (order domain.Order, err error) {
	defer s.observe(opTransitionStatus, time.Now(), &err)

	if !next.Valid() {
		return domain.Order{}, s.fail(opTransitionStatus, id, domain.ErrStatusUnknown)
	}
	if id <= 0 {
		return domain.Order{}, s.fail(opTransitionStatus, id, domain.ErrOrderNotFound)
	}

	current, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, s.fail(opTransitionStatus, id, err)
	}

	from := current.Status
	if err := current.TransitionTo(next, s.now()); err != nil {
		return domain.Order{}, s.fail(opTransitionStatus, id, err)
	}

	updated, err := s.orders.UpdateStatus(ctx, current, from)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.RecordConflict()
		}
		return domain.Order{}, s.fail(opTransitionStatus, id, err)
	}

	s.metrics.RecordTransition(string(from), string(updated.Status))
	s.logger.WithFields(log.Fields{
		"order_id": updated.ID,
		"from":     from,
		"to":       updated.Status,
		"version":  updated.Version,
	}).Info("order status changed")

	s.publish(ctx, domain.OrderEvent{
		Type:        domain.OrderEventStatusChanged,
		OrderID:     updated.ID,
		OrderNumber: updated.OrderNumber,
		Status:      updated.Status,
		FromStatus:  from,
		Timestamp:   updated.UpdatedAt,
	})

	return updated, nil
}

// DeleteOrder удаляет заказ и возвращает его последнее состояние.
func (s *Store) DeleteOrder(ctx context.Context, id int64) (order domain.Order, err error) {
	defer s.observe(opDeleteOrder, time.Now(), &err)

	if id <= 0 {
		return domain.Order{}, s.fail(opDeleteOrder, id, domain.ErrOrderNotFound)
	}

	at := s.now()
	deleted, err := s.orders.Delete(ctx, id, at)
	if err != nil {
		return domain.Order{}, s.fail(opDeleteOrder, id, err)
	}

	s.logger.WithField("order_id", deleted.ID).Info("order deleted")

	s.publish(ctx, domain.OrderEvent{
		Type:        domain.OrderEventDeleted,
		OrderID:     deleted.ID,
		OrderNumber: deleted.OrderNumber,
		Status:      deleted.Status,
		Timestamp:   at,
	})

	return deleted, nil
}

// Timeline возвращает историю заказа, в том числе уже удалённого.
// Заказ без единого события считается несуществующим.
func (s *Store) Timeline(ctx context.Context, id int64) (events []domain.TimelineEvent, err error) {
	defer s.observe(opTimeline, time.Now(), &err)

	if s.timeline == nil || id <= 0 {
		return nil, s.fail(opTimeline, id, domain.ErrOrderNotFound)
	}

	events, err = s.timeline.Events(ctx, id)
	if err != nil {
		return nil, s.fail(opTimeline, id, err)
	}
	if len(events) == 0 {
		return nil, s.fail(opTimeline, id, domain.ErrOrderNotFound)
	}
	return events, nil
}

// fail классифицирует и логирует ошибку. Неклассифицированные ошибки хранилища
// становятся ErrBackend с исходной причиной в цепочке.
func (s *Store) fail(op string, id int64, err error) error {
	if !domain.Classified(err) {
		err = domain.BackendError(op, err)
	}

	entry := s.logger.WithError(err).WithField("op", op)
	if id != 0 {
		entry = entry.WithField("order_id", id)
	}

	switch {
	case errors.Is(err, domain.ErrBackend):
		entry.Error("order store operation failed")
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		entry.Warn("order store operation rejected")
	default:
		entry.Debug("order store operation rejected")
	}
	return err
}

func (s *Store) observe(op string, start time.Time, err *error) {
	result := "ok"
	if *err != nil {
		result = domain.Kind(*err)
	}
	s.metrics.RecordOperation(op, result, time.Since(start))
}

// publish отправляет событие после успешной мутации. Ошибка публикации не
// откатывает изменение и только логируется. Отмена запроса не отменяет
// публикацию уже сохранённого изменения.
func (s *Store) publish(ctx context.Context, event domain.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": event.Type,
		}).Warn("failed to publish order event")
	}
}
