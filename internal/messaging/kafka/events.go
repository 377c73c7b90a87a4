package kafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// DefaultTopicOrderEvents — топик событий жизненного цикла заказов по умолчанию.
const DefaultTopicOrderEvents = "pos.order.events"

// Kafka headers событий.
const (
	HeaderEventType = "x-event-type"
	HeaderEventID   = "x-event-id"
)

// OrderEventMessage — конверт события заказа в Kafka.
type OrderEventMessage struct {
	EventID     string                `json:"event_id"`
	EventType   domain.OrderEventType `json:"event_type"`
	OrderID     int64                 `json:"order_id"`
	OrderNumber string                `json:"order_number"`
	Status      domain.OrderStatus    `json:"status"`
	FromStatus  domain.OrderStatus    `json:"from_status,omitempty"`
	Timestamp   time.Time             `json:"timestamp"`
}

// NewOrderEventMessage создаёт конверт с новым event_id.
func NewOrderEventMessage(event domain.OrderEvent) *OrderEventMessage {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &OrderEventMessage{
		EventID:     uuid.NewString(),
		EventType:   event.Type,
		OrderID:     event.OrderID,
		OrderNumber: event.OrderNumber,
		Status:      event.Status,
		FromStatus:  event.FromStatus,
		Timestamp:   ts,
	}
}
