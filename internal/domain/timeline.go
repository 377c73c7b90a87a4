package domain

import "time"

// Типы событий аудита заказа.
const (
	TimelineEventPlaced        = "placed"
	TimelineEventStatusChanged = "status_changed"
	TimelineEventDeleted       = "deleted"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
// События переживают удаление заказа.
type TimelineEvent struct {
	OrderID    int64       `json:"order_id"`
	Type       string      `json:"type"`
	FromStatus OrderStatus `json:"from_status,omitempty"`
	ToStatus   OrderStatus `json:"to_status,omitempty"`
	Occurred   time.Time   `json:"occurred"`
}
