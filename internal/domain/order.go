package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа в POS.
type OrderStatus string

const (
	// OrderStatusPending — заказ принят кассой, но ещё не подтверждён.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — заказ подтверждён и передан на кухню.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusCompleted — заказ выдан клиенту.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Типовые способы оплаты. Поле остаётся свободным текстом.
const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
)

// MaxTotalAmount — исключающая верхняя граница суммы заказа (NUMERIC(12,2) в хранилище).
var MaxTotalAmount = decimal.New(1, 10)

// transitions — закрытая таблица допустимых переходов статуса.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted: nil,
	OrderStatusCancelled: nil,
}

// ParseOrderStatus нормализует строку и проверяет, что статус известен.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrStatusUnknown, raw)
	}
	return status, nil
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal сообщает, что из статуса нет исходящих переходов.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo проверяет переход по таблице.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order — единственная сущность POS: покупка от оформления до выдачи или отмены.
type Order struct {
	ID            int64           `json:"id"`
	CustomerName  string          `json:"customer_name"`
	OrderNumber   string          `json:"order_number"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	// Items — непрозрачный JSON-массив позиций ({name, quantity, unit_price}).
	Items     json.RawMessage `json:"items"`
	Status    OrderStatus     `json:"status"`
	Version   int64           `json:"version"`
	OrderDate time.Time       `json:"order_date"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewOrderParams — входные данные операции оформления заказа.
type NewOrderParams struct {
	CustomerName  string
	OrderNumber   string
	PaymentMethod string
	// TotalAmount nil означает, что сумма не передана.
	TotalAmount *decimal.Decimal
	Items       json.RawMessage
}

// NewOrder проверяет параметры и собирает заказ в статусе pending.
// ID назначает хранилище.
func NewOrder(params NewOrderParams, now time.Time) (Order, error) {
	order := Order{
		CustomerName:  strings.TrimSpace(params.CustomerName),
		OrderNumber:   strings.TrimSpace(params.OrderNumber),
		PaymentMethod: strings.ToLower(strings.TrimSpace(params.PaymentMethod)),
		Status:        OrderStatusPending,
		OrderDate:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if order.CustomerName == "" {
		return Order{}, ErrCustomerNameRequired
	}
	if order.OrderNumber == "" {
		return Order{}, ErrOrderNumberRequired
	}
	if order.PaymentMethod == "" {
		return Order{}, ErrPaymentMethodRequired
	}
	if params.TotalAmount == nil {
		return Order{}, ErrTotalAmountRequired
	}
	order.TotalAmount = *params.TotalAmount

	items, err := NormalizeItems(params.Items)
	if err != nil {
		return Order{}, err
	}
	order.Items = items

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return Order{}, errs[0]
	}
	return order, nil
}

// NormalizeItems проверяет, что позиции — JSON-массив; пустое значение и null дают [].
func NormalizeItems(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("[]"), nil
	}
	if trimmed[0] != '[' || !json.Valid(trimmed) {
		return nil, ErrItemsInvalid
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return nil, ErrItemsInvalid
	}
	return json.RawMessage(compact.Bytes()), nil
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerName == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if o.OrderNumber == "" {
		errs = append(errs, ErrOrderNumberRequired)
	}
	if o.PaymentMethod == "" {
		errs = append(errs, ErrPaymentMethodRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrTotalAmountNegative)
	}
	if o.TotalAmount.GreaterThanOrEqual(MaxTotalAmount) {
		errs = append(errs, ErrTotalAmountTooLarge)
	}
	if !o.TotalAmount.Round(2).Equal(o.TotalAmount) {
		errs = append(errs, ErrTotalAmountPrecision)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusUnknown)
	}

	return errs
}

// TransitionTo переводит заказ в новый статус по таблице переходов.
func (o *Order) TransitionTo(next OrderStatus, now time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrStatusUnknown, next)
	}
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// OrderFilter сужает выборку заказов.
type OrderFilter struct {
	// Status пустой — все статусы.
	Status OrderStatus
	// Limit 0 — без ограничения.
	Limit  int
	Offset int
}
