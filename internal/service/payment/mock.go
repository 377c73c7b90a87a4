package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// MockService — конфигурируемая заглушка PaymentService для локального запуска и тестов.
type MockService struct {
	mu sync.Mutex

	Err   error
	calls int
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{}
}

// CreateIntent возвращает детерминированный секрет и считает вызовы.
func (m *MockService) CreateIntent(ctx context.Context, amountMinor int64, currency string) (domain.PaymentIntent, error) {
	if err := domain.ValidatePaymentAmount(amountMinor); err != nil {
		return domain.PaymentIntent{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.PaymentIntent{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.Err != nil {
		return domain.PaymentIntent{}, m.Err
	}

	id := fmt.Sprintf("pi_mock_%d", m.calls)
	return domain.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + currency,
		AmountMinor:  amountMinor,
		Currency:     currency,
	}, nil
}

// Calls возвращает число обращений к CreateIntent.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ domain.PaymentService = (*MockService)(nil)
