package domain

import (
	"context"
	"time"
)

// PaymentService описывает взаимодействие с платёжным провайдером.
type PaymentService interface {
	// CreateIntent создаёт намерение оплаты картой на сумму в минимальных единицах.
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (PaymentIntent, error)
}

// OrderEventType — тип публикуемого события заказа.
type OrderEventType string

const (
	OrderEventPlaced        OrderEventType = "order.placed"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
	OrderEventDeleted       OrderEventType = "order.deleted"
)

// OrderEvent — уведомление об изменении заказа для внешних подписчиков.
type OrderEvent struct {
	Type        OrderEventType `json:"event_type"`
	OrderID     int64          `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	Status      OrderStatus    `json:"status"`
	FromStatus  OrderStatus    `json:"from_status,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// EventPublisher публикует события заказов.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}
