package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// StripeService создаёт PaymentIntent в Stripe и отдаёт client secret фронтенду.
type StripeService struct {
	client paymentintent.Client
	logger *log.Entry
}

// NewStripeService создаёт сервис с ключом API и стандартным backend Stripe.
func NewStripeService(secretKey string, logger *log.Entry) *StripeService {
	return NewStripeServiceWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend), logger)
}

// NewStripeServiceWithBackend позволяет подменить backend (httptest в тестах).
func NewStripeServiceWithBackend(secretKey string, backend stripe.Backend, logger *log.Entry) *StripeService {
	if logger == nil {
		logger = log.New().WithField("component", "stripe")
	}
	return &StripeService{
		client: paymentintent.Client{B: backend, Key: secretKey},
		logger: logger,
	}
}

// CreateIntent создаёт намерение оплаты картой.
func (s *StripeService) CreateIntent(ctx context.Context, amountMinor int64, currency string) (domain.PaymentIntent, error) {
	if err := domain.ValidatePaymentAmount(amountMinor); err != nil {
		return domain.PaymentIntent{}, err
	}
	currency = strings.ToLower(strings.TrimSpace(currency))

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountMinor),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx

	intent, err := s.client.New(params)
	if err != nil {
		entry := s.logger.WithError(err).WithField("amount_minor", amountMinor)
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			entry = entry.WithFields(log.Fields{
				"stripe_type": stripeErr.Type,
				"stripe_code": stripeErr.Code,
				"http_status": stripeErr.HTTPStatusCode,
			})
		}
		entry.Warn("create payment intent failed")
		return domain.PaymentIntent{}, fmt.Errorf("%w: %w", domain.ErrPaymentGateway, err)
	}

	s.logger.WithFields(log.Fields{
		"payment_intent": intent.ID,
		"amount_minor":   intent.Amount,
		"currency":       intent.Currency,
	}).Info("payment intent created")

	return domain.PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountMinor:  intent.Amount,
		Currency:     string(intent.Currency),
	}, nil
}

var _ domain.PaymentService = (*StripeService)(nil)
