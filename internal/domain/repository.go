package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
// Каждый метод — одна атомарная единица работы с хранилищем.
type OrderRepository interface {
	// Create сохраняет новый заказ, назначает ID и возвращает сохранённую запись.
	// Дубликат order_number даёт ErrOrderNumberTaken.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id int64) (Order, error)
	// Status возвращает только текущий статус заказа.
	Status(ctx context.Context, id int64) (OrderStatus, error)
	// List возвращает заказы от новых к старым (created_at DESC, id DESC).
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
	// UpdateStatus сохраняет новый статус при совпадении версии (compare-and-set).
	// Несовпадение версии даёт ErrOrderVersionConflict.
	UpdateStatus(ctx context.Context, order Order, from OrderStatus) (Order, error)
	// Delete удаляет заказ и возвращает последнее состояние записи.
	// at — время события удаления в истории заказа.
	Delete(ctx context.Context, id int64, at time.Time) (Order, error)
}

// TimelineRepository отдаёт события аудита заказа.
type TimelineRepository interface {
	Events(ctx context.Context, orderID int64) ([]TimelineEvent, error)
}

// MenuRepository отдаёт меню.
type MenuRepository interface {
	List(ctx context.Context) ([]MenuItem, error)
}
