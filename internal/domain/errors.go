package domain

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок. Конкретные ошибки оборачивают один из них,
// поэтому errors.Is(err, ErrValidation) классифицирует любую ошибку валидации.
var (
	// ErrValidation — входные данные некорректны, повтор запроса бессмыслен.
	ErrValidation = errors.New("validation error")
	// ErrNotFound — запрошенная запись отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition — переход статуса запрещён таблицей переходов.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict — проигрыш в гонке конкурентных изменений, запрос можно повторить.
	ErrConflict = errors.New("conflict")
	// ErrBackend — хранилище недоступно или вернуло ошибку.
	ErrBackend = errors.New("backend error")
)

var (
	// Ошибка отсутствующего имени клиента.
	ErrCustomerNameRequired = fmt.Errorf("%w: customer_name is required", ErrValidation)
	// Ошибка отсутствующего номера заказа.
	ErrOrderNumberRequired = fmt.Errorf("%w: order_number is required", ErrValidation)
	// Ошибка отсутствующего способа оплаты.
	ErrPaymentMethodRequired = fmt.Errorf("%w: payment_method is required", ErrValidation)
	// Ошибка отсутствующей суммы заказа.
	ErrTotalAmountRequired = fmt.Errorf("%w: total_amount is required", ErrValidation)
	// Ошибка отрицательной суммы заказа.
	ErrTotalAmountNegative = fmt.Errorf("%w: total_amount must be non-negative", ErrValidation)
	// Ошибка суммы, не помещающейся в NUMERIC(12,2).
	ErrTotalAmountTooLarge = fmt.Errorf("%w: total_amount must be less than %s", ErrValidation, MaxTotalAmount)
	// Ошибка суммы с точностью больше копейки.
	ErrTotalAmountPrecision = fmt.Errorf("%w: total_amount must have at most 2 decimal places", ErrValidation)
	// Ошибка позиций заказа, которые не являются JSON-массивом.
	ErrItemsInvalid = fmt.Errorf("%w: items must be a JSON array", ErrValidation)
	// Ошибка неизвестного статуса.
	ErrStatusUnknown = fmt.Errorf("%w: unknown order status", ErrValidation)
	// Ошибка некорректного идентификатора заказа.
	ErrOrderIDInvalid = fmt.Errorf("%w: order id must be a positive integer", ErrValidation)
	// ErrOrderNumberTaken — номер заказа уже используется другим заказом.
	ErrOrderNumberTaken = fmt.Errorf("%w: order_number already exists", ErrValidation)
	// Ошибка начального статуса, отличного от pending.
	ErrInitialStatusInvalid = fmt.Errorf("%w: new orders must start as pending", ErrValidation)
	// Ошибка отрицательных limit/offset в фильтре.
	ErrPaginationInvalid = fmt.Errorf("%w: limit and offset must be non-negative", ErrValidation)
	// Ошибка некорректной суммы платежа.
	ErrPaymentAmountInvalid = fmt.Errorf("%w: amount must be a positive integer in minor units", ErrValidation)

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = fmt.Errorf("order version %w", ErrConflict)

	// ErrPaymentGateway — платёжный провайдер вернул ошибку.
	ErrPaymentGateway = errors.New("payment gateway error")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// Kind возвращает метку вида ошибки для логов и метрик.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrBackend):
		return "backend"
	default:
		return "internal"
	}
}

// Classified сообщает, относится ли ошибка к одному из известных видов.
func Classified(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrBackend)
}

// BackendError оборачивает ошибку хранилища в ErrBackend, сохраняя причину в цепочке.
func BackendError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBackend, op, err)
}
