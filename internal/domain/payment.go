package domain

// PaymentIntent — намерение оплаты, созданное у платёжного провайдера.
type PaymentIntent struct {
	// ID — идентификатор у провайдера (может быть пустым у заглушек).
	ID string
	// ClientSecret передаётся фронтенду для подтверждения оплаты картой.
	ClientSecret string
	AmountMinor  int64
	Currency     string
}

// ValidatePaymentAmount проверяет сумму платежа в минимальных единицах.
func ValidatePaymentAmount(amountMinor int64) error {
	if amountMinor <= 0 {
		return ErrPaymentAmountInvalid
	}
	return nil
}
