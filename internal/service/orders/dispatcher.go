package orders

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

const (
	defaultDispatchBuffer  = 1024
	defaultDispatchTimeout = 5 * time.Second
)

// ErrEventQueueFull возвращается, когда очередь событий переполнена и событие отброшено.
var ErrEventQueueFull = errors.New("order event queue is full")

// DispatcherOption настраивает Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchBuffer задаёт ёмкость очереди событий.
func WithDispatchBuffer(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.buffer = size
		}
	}
}

// WithDispatchTimeout ограничивает одну попытку публикации.
func WithDispatchTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithDispatchMetrics подключает учёт результатов публикации.
func WithDispatchMetrics(m *metrics.StoreMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithDispatchLogger задаёт логгер.
func WithDispatchLogger(logger *log.Entry) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Dispatcher отвязывает публикацию событий от запроса: PublishOrderEvent только
// ставит событие в очередь, а доставкой занимается один воркер в Run.
// Порядок событий сохраняется.
type Dispatcher struct {
	publisher domain.EventPublisher
	queue     chan domain.OrderEvent
	buffer    int
	timeout   time.Duration
	metrics   *metrics.StoreMetrics
	logger    *log.Entry
}

// NewDispatcher создаёт очередь поверх синхронного паблишера.
func NewDispatcher(publisher domain.EventPublisher, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		publisher: publisher,
		buffer:    defaultDispatchBuffer,
		timeout:   defaultDispatchTimeout,
		logger:    log.WithField("component", "order-event-dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan domain.OrderEvent, d.buffer)
	return d
}

// PublishOrderEvent ставит событие в очередь и не ждёт брокера.
func (d *Dispatcher) PublishOrderEvent(_ context.Context, event domain.OrderEvent) error {
	select {
	case d.queue <- event:
		return nil
	default:
		d.metrics.RecordEventPublished(string(event.Type), ErrEventQueueFull)
		return ErrEventQueueFull
	}
}

// Pending возвращает число событий, ожидающих доставки.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run доставляет события до отмены ctx, затем дочищает очередь и возвращается.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.WithField("buffer", d.buffer).Info("order event dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.drain()
			d.logger.Info("order event dispatcher stopped")
			return
		case event := <-d.queue:
			d.deliver(event)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event domain.OrderEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.publisher.PublishOrderEvent(ctx, event)
	d.metrics.RecordEventPublished(string(event.Type), err)
	if err != nil {
		d.logger.WithError(err).WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": event.Type,
		}).Warn("failed to publish order event")
	}
}
