package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// StorageDriverMemory хранит заказы в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит заказы в PostgreSQL.
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска POS-сервиса.
// Поля скалярные, чтобы конфигурации можно было сравнивать через ==.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пусто отключает публикацию событий.
	KafkaBrokers string
	KafkaTopic   string

	// StripeSecretKey пустой — используется mock платёжного сервиса.
	StripeSecretKey string
	PaymentCurrency string

	CORSAllowOrigins string

	// RateLimitRPS <= 0 отключает ограничение запросов.
	RateLimitRPS   float64
	RateLimitBurst int

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":5000",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		KafkaTopic:          "pos.order.events",
		PaymentCurrency:     "usd",
		CORSAllowOrigins:    "*",
		RateLimitRPS:        20,
		RateLimitBurst:      40,
		ShutdownTimeout:     5 * time.Second,
	}
}

// Validate проверяет согласованность настроек до старта.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("rate limit burst must be > 0 when rate limiting is enabled"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be > 0"))
	}

	return errors.Join(errs...)
}

// kafkaBrokerList разбирает список брокеров, отбрасывая пробелы и пустые элементы.
func (c Config) kafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func (c Config) corsOrigins() []string {
	return splitList(c.CORSAllowOrigins)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
