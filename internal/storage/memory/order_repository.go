package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// OrderRepository — in-memory реализация OrderRepository и TimelineRepository.
// Один мьютекс делает каждую операцию атомарной вместе с записью в timeline.
type OrderRepository struct {
	mu       sync.RWMutex
	nextID   int64
	items    map[int64]domain.Order
	numbers  map[string]int64
	timeline *timelineStore
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		items:    make(map[int64]domain.Order),
		numbers:  make(map[string]int64),
		timeline: newTimelineStore(),
	}
}

// Create сохраняет новый заказ и назначает ему следующий ID.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.numbers[order.OrderNumber]; taken {
		return domain.Order{}, domain.ErrOrderNumberTaken
	}

	// ID никогда не переиспользуется, даже после удаления.
	r.nextID++
	order.ID = r.nextID
	order.Version = 0
	order.Items = cloneBytes(order.Items)

	r.items[order.ID] = order
	r.numbers[order.OrderNumber] = order.ID
	r.timeline.append(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.TimelineEventPlaced,
		ToStatus: order.Status,
		Occurred: order.CreatedAt,
	})

	return cloneOrder(order), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *OrderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// Status возвращает текущий статус заказа.
func (r *OrderRepository) Status(ctx context.Context, id int64) (domain.OrderStatus, error) {
	order, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return order.Status, nil
}

// List возвращает заказы от новых к старым с учётом фильтра.
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Order{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateStatus перезаписывает статус, проверяя версию (optimistic locking).
func (r *OrderRepository) UpdateStatus(ctx context.Context, order domain.Order, from domain.OrderStatus) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if current.Version != order.Version || current.Status != from {
		return domain.Order{}, domain.ErrOrderVersionConflict
	}

	current.Status = order.Status
	current.UpdatedAt = order.UpdatedAt
	current.Version++
	r.items[current.ID] = current
	r.timeline.append(domain.TimelineEvent{
		OrderID:    current.ID,
		Type:       domain.TimelineEventStatusChanged,
		FromStatus: from,
		ToStatus:   current.Status,
		Occurred:   current.UpdatedAt,
	})

	return cloneOrder(current), nil
}

// Delete удаляет заказ; номер заказа освобождается, ID — нет.
func (r *OrderRepository) Delete(ctx context.Context, id int64, at time.Time) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	delete(r.items, id)
	delete(r.numbers, order.OrderNumber)
	r.timeline.append(domain.TimelineEvent{
		OrderID:    id,
		Type:       domain.TimelineEventDeleted,
		FromStatus: order.Status,
		Occurred:   at.UTC(),
	})

	return order, nil
}

// Events возвращает события заказа в хронологическом порядке.
func (r *OrderRepository) Events(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.timeline.list(orderID), nil
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = cloneBytes(order.Items)
	return order
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var (
	_ domain.OrderRepository    = (*OrderRepository)(nil)
	_ domain.TimelineRepository = (*OrderRepository)(nil)
)
