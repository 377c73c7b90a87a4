package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/orders"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []domain.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]domain.OrderEventType, 0, len(p.events))
	for _, event := range p.events {
		result = append(result, event.Type)
	}
	return result
}

type failingRepository struct {
	domain.OrderRepository
	err error
}

func (r failingRepository) Status(context.Context, int64) (domain.OrderStatus, error) {
	return "", r.err
}

func (r failingRepository) List(context.Context, domain.OrderFilter) ([]domain.Order, error) {
	return nil, r.err
}

// barrierRepository задерживает чтение, пока все участники гонки не прочитают заказ.
type barrierRepository struct {
	*memory.OrderRepository
	reads *sync.WaitGroup
}

func (r barrierRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	order, err := r.OrderRepository.Get(ctx, id)
	r.reads.Done()
	r.reads.Wait()
	return order, err
}

func newTestLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "order-store-test")
}

func newStore(t *testing.T, opts ...orders.Option) (*orders.Store, *memory.OrderRepository) {
	t.Helper()
	repo := memory.NewOrderRepository()
	opts = append([]orders.Option{orders.WithLogger(newTestLogger())}, opts...)
	return orders.NewStore(repo, opts...), repo
}

func aliceParams(number string) domain.NewOrderParams {
	total := decimal.RequireFromString("23.50")
	return domain.NewOrderParams{
		CustomerName:  "Alice",
		OrderNumber:   number,
		PaymentMethod: "card",
		TotalAmount:   &total,
		Items:         json.RawMessage(`[{"name":"Burger","qty":1}]`),
	}
}

func TestStore_AliceScenario(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	order, err := store.PlaceOrder(ctx, aliceParams("ON-1001"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("23.50")))
	assert.Positive(t, order.ID)
	assert.False(t, order.CreatedAt.IsZero())
	assert.JSONEq(t, `[{"name":"Burger","qty":1}]`, string(order.Items))

	confirmed, err := store.TransitionStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, confirmed.Status)
	assert.Equal(t, order.Version+1, confirmed.Version)
	assert.True(t, confirmed.CreatedAt.Equal(order.CreatedAt))

	_, err = store.TransitionStatus(ctx, order.ID, domain.OrderStatusPending)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestStore_GetStatusMissing(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.GetStatus(context.Background(), 9999999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetStatus(context.Background(), -1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_PlaceThenGetStatusIsPending(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		params := aliceParams(fmt.Sprintf("ON-%d", i))
		total := decimal.New(int64(i*137), -2)
		params.TotalAmount = &total

		order, err := store.PlaceOrder(ctx, params)
		require.NoError(t, err)

		status, err := store.GetStatus(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPending, status)
	}
}

func TestStore_PlaceOrderValidation(t *testing.T) {
	store, repo := newStore(t)
	ctx := context.Background()

	negative := decimal.RequireFromString("-1")
	tests := []struct {
		name    string
		mutate  func(*domain.NewOrderParams)
		wantErr error
	}{
		{name: "missing customer", mutate: func(p *domain.NewOrderParams) { p.CustomerName = "  " }, wantErr: domain.ErrCustomerNameRequired},
		{name: "missing number", mutate: func(p *domain.NewOrderParams) { p.OrderNumber = "" }, wantErr: domain.ErrOrderNumberRequired},
		{name: "missing payment", mutate: func(p *domain.NewOrderParams) { p.PaymentMethod = "" }, wantErr: domain.ErrPaymentMethodRequired},
		{name: "missing total", mutate: func(p *domain.NewOrderParams) { p.TotalAmount = nil }, wantErr: domain.ErrTotalAmountRequired},
		{name: "negative total", mutate: func(p *domain.NewOrderParams) { p.TotalAmount = &negative }, wantErr: domain.ErrTotalAmountNegative},
		{name: "items object", mutate: func(p *domain.NewOrderParams) { p.Items = json.RawMessage(`{"name":"x"}`) }, wantErr: domain.ErrItemsInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := aliceParams("ON-" + tt.name)
			tt.mutate(&params)

			_, err := store.PlaceOrder(ctx, params)
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	listed, err := repo.List(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed, "rejected orders must not be persisted")
}

func TestStore_PlaceOrderDuplicateNumber(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.NoError(t, err)

	_, err = store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.ErrorIs(t, err, domain.ErrOrderNumberTaken)
}

func TestStore_ListOrdersNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	offsets := []int{3, 0, 5, 1, 4, 2}
	var mu sync.Mutex
	var clock time.Time
	store, _ := newStore(t, orders.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}))
	ctx := context.Background()

	for i, offset := range offsets {
		mu.Lock()
		clock = base.Add(time.Duration(offset) * time.Minute)
		mu.Unlock()
		_, err := store.PlaceOrder(ctx, aliceParams(fmt.Sprintf("ON-%d", i)))
		require.NoError(t, err)
	}

	listed, err := store.ListOrders(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, listed, len(offsets))
	for i := 1; i < len(listed); i++ {
		assert.False(t, listed[i].CreatedAt.After(listed[i-1].CreatedAt), "orders must be newest first")
	}

	page, err := store.ListOrders(ctx, domain.OrderFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, listed[1].ID, page[0].ID)
	assert.Equal(t, listed[2].ID, page[1].ID)
}

func TestStore_ListOrdersFilter(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	first, err := store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.NoError(t, err)
	_, err = store.PlaceOrder(ctx, aliceParams("ON-2"))
	require.NoError(t, err)
	_, err = store.TransitionStatus(ctx, first.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)

	pending, err := store.ListOrders(ctx, domain.OrderFilter{Status: domain.OrderStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ON-2", pending[0].OrderNumber)

	_, err = store.ListOrders(ctx, domain.OrderFilter{Status: "shipped"})
	require.ErrorIs(t, err, domain.ErrStatusUnknown)

	_, err = store.ListOrders(ctx, domain.OrderFilter{Limit: -1})
	require.ErrorIs(t, err, domain.ErrPaginationInvalid)
}

func TestStore_TerminalStatusesRejectEverything(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	all := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusConfirmed,
		domain.OrderStatusCompleted,
		domain.OrderStatusCancelled,
	}

	completed, err := store.PlaceOrder(ctx, aliceParams("ON-completed"))
	require.NoError(t, err)
	_, err = store.TransitionStatus(ctx, completed.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	_, err = store.TransitionStatus(ctx, completed.ID, domain.OrderStatusCompleted)
	require.NoError(t, err)

	cancelled, err := store.PlaceOrder(ctx, aliceParams("ON-cancelled"))
	require.NoError(t, err)
	_, err = store.TransitionStatus(ctx, cancelled.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)

	for _, id := range []int64{completed.ID, cancelled.ID} {
		for _, next := range all {
			_, err := store.TransitionStatus(ctx, id, next)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition, "order %d -> %s", id, next)
		}
	}
}

func TestStore_TransitionStatusErrors(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.TransitionStatus(ctx, 42, domain.OrderStatusConfirmed)
	require.ErrorIs(t, err, domain.ErrNotFound)

	order, err := store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.NoError(t, err)

	_, err = store.TransitionStatus(ctx, order.ID, "shipped")
	require.ErrorIs(t, err, domain.ErrStatusUnknown)
}

func TestStore_ConcurrentConflictingTransitions(t *testing.T) {
	repo := memory.NewOrderRepository()
	reads := &sync.WaitGroup{}
	store := orders.NewStore(barrierRepository{OrderRepository: repo, reads: reads},
		orders.WithLogger(newTestLogger()))
	ctx := context.Background()

	order, err := store.PlaceOrder(ctx, aliceParams("ON-race"))
	require.NoError(t, err)

	targets := []domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusCancelled}
	reads.Add(len(targets))

	type outcome struct {
		target domain.OrderStatus
		order  domain.Order
		err    error
	}
	results := make(chan outcome, len(targets))
	for _, target := range targets {
		target := target
		go func() {
			updated, err := store.TransitionStatus(ctx, order.ID, target)
			results <- outcome{target: target, order: updated, err: err}
		}()
	}

	var winners []outcome
	for range targets {
		res := <-results
		if res.err == nil {
			winners = append(winners, res)
			continue
		}
		assert.ErrorIs(t, res.err, domain.ErrConflict)
	}
	require.Len(t, winners, 1)

	status, err := store.GetStatus(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0].target, status)
}

func TestStore_ManyConcurrentTransitionsStayConsistent(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	order, err := store.PlaceOrder(ctx, aliceParams("ON-stress"))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []domain.OrderStatus
	)
	for i := 0; i < 32; i++ {
		target := domain.OrderStatusConfirmed
		if i%2 == 1 {
			target = domain.OrderStatusCancelled
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.TransitionStatus(ctx, order.ID, target)
			if err == nil {
				mu.Lock()
				winners = append(winners, target)
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.NotEmpty(t, winners)
	status, err := store.GetStatus(ctx, order.ID)
	require.NoError(t, err)
	// pending -> confirmed -> cancelled — самая длинная допустимая цепочка.
	require.LessOrEqual(t, len(winners), 2)
	if len(winners) == 2 {
		assert.Equal(t, domain.OrderStatusCancelled, status)
	} else {
		assert.Equal(t, winners[0], status)
	}
}

func TestStore_DeleteOrder(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	order, err := store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.NoError(t, err)

	deleted, err := store.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, deleted.ID)
	assert.Equal(t, "Alice", deleted.CustomerName)

	_, err = store.GetStatus(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.DeleteOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	listed, err := store.ListOrders(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	next, err := store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.NoError(t, err)
	assert.Greater(t, next.ID, order.ID, "ids must never be reused")
}

func TestStore_TimelineSurvivesDelete(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	order, err := store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.NoError(t, err)
	_, err = store.TransitionStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	_, err = store.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)

	events, err := store.Timeline(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.TimelineEventPlaced, events[0].Type)
	assert.Equal(t, domain.TimelineEventStatusChanged, events[1].Type)
	assert.Equal(t, domain.TimelineEventDeleted, events[2].Type)

	_, err = store.Timeline(ctx, 777)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_DeleteUsesStoreClock(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ticks int
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Minute)
	}
	publisher := &recordingPublisher{}
	store, _ := newStore(t, orders.WithClock(clock), orders.WithPublisher(publisher))
	ctx := context.Background()

	order, err := store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.NoError(t, err)
	_, err = store.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)

	events, err := store.Timeline(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	deletedAt := base.Add(2 * time.Minute)
	assert.True(t, events[1].Occurred.Equal(deletedAt), "deleted at %s", events[1].Occurred)

	require.Len(t, publisher.events, 2)
	assert.True(t, publisher.events[1].Timestamp.Equal(deletedAt))
}

func TestStore_PublishesEvents(t *testing.T) {
	publisher := &recordingPublisher{}
	store, _ := newStore(t, orders.WithPublisher(publisher))
	ctx := context.Background()

	order, err := store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.NoError(t, err)
	_, err = store.TransitionStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	_, err = store.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, []domain.OrderEventType{
		domain.OrderEventPlaced,
		domain.OrderEventStatusChanged,
		domain.OrderEventDeleted,
	}, publisher.types())
	assert.Equal(t, domain.OrderStatusPending, publisher.events[1].FromStatus)
	assert.Equal(t, "ON-1", publisher.events[2].OrderNumber)
}

func TestStore_PublishFailureKeepsChange(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker unavailable")}
	store, _ := newStore(t,
		orders.WithPublisher(publisher),
		orders.WithMetrics(metrics.NewStoreMetricsWithRegisterer(prometheus.NewRegistry())),
	)
	ctx := context.Background()

	order, err := store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.NoError(t, err)

	status, err := store.GetStatus(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, status)
}

func TestStore_BackendErrorsAreClassified(t *testing.T) {
	cause := errors.New("connection refused")
	store := orders.NewStore(failingRepository{err: cause}, orders.WithLogger(newTestLogger()))
	ctx := context.Background()

	_, err := store.GetStatus(ctx, 1)
	require.ErrorIs(t, err, domain.ErrBackend)
	require.ErrorIs(t, err, cause)

	_, err = store.ListOrders(ctx, domain.OrderFilter{})
	require.ErrorIs(t, err, domain.ErrBackend)
	assert.Equal(t, "backend", domain.Kind(err))
}

func TestStore_CanceledContextIsBackendError(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.PlaceOrder(ctx, aliceParams("ON-1"))
	require.ErrorIs(t, err, domain.ErrBackend)
	require.ErrorIs(t, err, context.Canceled)
}
