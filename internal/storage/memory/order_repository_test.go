package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func newOrder(number string, createdAt time.Time) domain.Order {
	return domain.Order{
		CustomerName:  "customer-1",
		OrderNumber:   number,
		PaymentMethod: domain.PaymentMethodCard,
		TotalAmount:   decimal.RequireFromString("12.40"),
		Items:         json.RawMessage(`[{"name":"Latte","quantity":2,"unit_price":"6.20"}]`),
		Status:        domain.OrderStatusPending,
		OrderDate:     createdAt,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	created, err := repo.Create(ctx, newOrder("ON-1", time.Now().UTC()))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected first id 1, got %d", created.ID)
	}

	stored, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.OrderNumber != "ON-1" || stored.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected stored order: %+v", stored)
	}

	status, err := repo.Status(ctx, created.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", status)
	}
}

func TestOrderRepository_DuplicateOrderNumber(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	if _, err := repo.Create(ctx, newOrder("ON-1", time.Now())); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := repo.Create(ctx, newOrder("ON-1", time.Now())); !errors.Is(err, domain.ErrOrderNumberTaken) {
		t.Fatalf("expected ErrOrderNumberTaken, got %v", err)
	}
}

func TestOrderRepository_ListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	base := time.Now().UTC()

	// Вставляем не по порядку времени.
	offsets := []time.Duration{2 * time.Minute, 0, time.Minute, 3 * time.Minute}
	for i, off := range offsets {
		if _, err := repo.Create(ctx, newOrder(fmt.Sprintf("ON-%d", i), base.Add(off))); err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
	}

	orders, err := repo.List(ctx, domain.OrderFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 4 {
		t.Fatalf("expected 4 orders, got %d", len(orders))
	}
	for i := 1; i < len(orders); i++ {
		if orders[i-1].CreatedAt.Before(orders[i].CreatedAt) {
			t.Fatalf("orders not sorted desc at %d: %v before %v", i, orders[i-1].CreatedAt, orders[i].CreatedAt)
		}
	}

	first := orders[0]
	confirmed := first
	confirmed.Status = domain.OrderStatusConfirmed
	if _, err := repo.UpdateStatus(ctx, confirmed, domain.OrderStatusPending); err != nil {
		t.Fatalf("update status failed: %v", err)
	}

	pending, err := repo.List(ctx, domain.OrderFilter{Status: domain.OrderStatusPending})
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending orders, got %d", len(pending))
	}

	page, err := repo.List(ctx, domain.OrderFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list page failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != orders[1].ID {
		t.Fatalf("unexpected page: %+v", page)
	}

	empty, err := repo.List(ctx, domain.OrderFilter{Offset: 10})
	if err != nil {
		t.Fatalf("list past end failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}

func TestOrderRepository_UpdateStatusVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	created, err := repo.Create(ctx, newOrder("ON-1", time.Now()))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	next := created
	next.Status = domain.OrderStatusConfirmed
	updated, err := repo.UpdateStatus(ctx, next, domain.OrderStatusPending)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Version != created.Version+1 {
		t.Fatalf("expected version increment, got %d", updated.Version)
	}

	// Повтор со старой версией должен проиграть.
	stale := created
	stale.Status = domain.OrderStatusCancelled
	if _, err := repo.UpdateStatus(ctx, stale, domain.OrderStatusPending); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	missing := created
	missing.ID = 999
	if _, err := repo.UpdateStatus(ctx, missing, domain.OrderStatusPending); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderRepository_ConcurrentUpdateStatusSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	created, err := repo.Create(ctx, newOrder("ON-1", time.Now()))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	targets := []domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusCancelled}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []domain.OrderStatus
		conflicts int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(target domain.OrderStatus) {
			defer wg.Done()
			next := created
			next.Status = target
			_, err := repo.UpdateStatus(ctx, next, domain.OrderStatusPending)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, target)
			case errors.Is(err, domain.ErrOrderVersionConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(targets[i%2])
	}
	wg.Wait()

	if len(winners) != 1 || conflicts != 19 {
		t.Fatalf("expected exactly one winner, got winners=%v conflicts=%d", winners, conflicts)
	}
	status, err := repo.Status(ctx, created.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status != winners[0] {
		t.Fatalf("stored status %s does not match winner %s", status, winners[0])
	}
}

func TestOrderRepository_DeleteKeepsIDsAndTimeline(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	first, err := repo.Create(ctx, newOrder("ON-1", time.Now()))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	deletedAt := first.CreatedAt.Add(time.Minute)
	deleted, err := repo.Delete(ctx, first.ID, deletedAt)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted.ID != first.ID || deleted.OrderNumber != "ON-1" {
		t.Fatalf("unexpected deleted order: %+v", deleted)
	}

	if _, err := repo.Status(ctx, first.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := repo.Delete(ctx, first.ID, time.Now()); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}

	// Номер освобождается, ID — нет.
	second, err := repo.Create(ctx, newOrder("ON-1", time.Now()))
	if err != nil {
		t.Fatalf("re-create failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("id %d was reused", second.ID)
	}

	events, err := repo.Events(ctx, first.ID)
	if err != nil {
		t.Fatalf("events failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected placed+deleted events, got %+v", events)
	}
	if events[0].Type != domain.TimelineEventPlaced || events[1].Type != domain.TimelineEventDeleted {
		t.Fatalf("unexpected event types: %+v", events)
	}
	if !events[1].Occurred.Equal(deletedAt) {
		t.Fatalf("expected deleted event at %s, got %s", deletedAt, events[1].Occurred)
	}
}

func TestOrderRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	created, err := repo.Create(ctx, newOrder("ON-1", time.Now()))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created.Items[0] = 'X'

	stored, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Items[0] != '[' {
		t.Fatalf("stored items mutated from outside: %s", stored.Items)
	}
}

func TestOrderRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := memory.NewOrderRepository()

	if _, err := repo.Create(ctx, newOrder("ON-1", time.Now())); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := repo.List(context.Background(), domain.OrderFilter{}); err != nil {
		t.Fatalf("list failed: %v", err)
	}
}
