package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/service/payment"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Orders   domain.OrderRepository
	Timeline domain.TimelineRepository
	Menu     domain.MenuRepository
	Payments domain.PaymentService
	// Publisher nil, если Kafka не настроена.
	Publisher domain.EventPublisher
	Logger    *log.Entry

	storageChecker health.Checker
	producer       *kafka.Producer
	closeStorage   func() error
}

// NewDependencies создаёт хранилище, платёжный сервис и (опционально) Kafka producer.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Orders:         store.orders,
		Timeline:       store.timeline,
		Menu:           store.menu,
		Payments:       initPayments(cfg, logger),
		Logger:         logger,
		storageChecker: store.checker,
		closeStorage:   store.closeFn,
	}

	if producer := initEventProducer(cfg, logger); producer != nil {
		deps.producer = producer
		deps.Publisher = producer
	}

	return deps, nil
}

// initPayments выбирает Stripe при наличии ключа, иначе mock.
func initPayments(cfg Config, logger *log.Entry) domain.PaymentService {
	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY is not set, payment intents are served by a mock")
		return payment.NewMockService()
	}
	return payment.NewStripeService(cfg.StripeSecretKey, logger.WithField("layer", "payment"))
}

// initEventProducer подключает публикацию событий заказов в Kafka.
// Недоступная Kafka не мешает старту: сервис работает без событий.
func initEventProducer(cfg Config, logger *log.Entry) *kafka.Producer {
	brokers := cfg.kafkaBrokerList()
	if len(brokers) == 0 {
		logger.Info("POS_KAFKA_BROKERS is not set, order events are not published")
		return nil
	}

	producer, err := kafka.NewProducer(brokers, cfg.KafkaTopic, logger.WithField("layer", "kafka"))
	if err != nil {
		logger.WithError(err).WithField("brokers", brokers).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithFields(log.Fields{"brokers": brokers, "topic": cfg.KafkaTopic}).Info("kafka producer initialized")
	return producer
}

// Close освобождает Kafka producer и пул соединений.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			d.Logger.Info("kafka producer closed")
		}
	}
	if d.closeStorage != nil {
		if err := d.closeStorage(); err != nil {
			d.Logger.WithError(err).Warn("failed to close storage")
		} else {
			d.Logger.Info("storage closed")
		}
	}
}
