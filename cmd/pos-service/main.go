// Command pos-service запускает REST API кассы.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/app"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

const (
	envHTTPAddr            = "POS_HTTP_ADDR"
	envPort                = "PORT"
	envMetricsAddr         = "POS_METRICS_ADDR"
	envStorageDriver       = "POS_STORAGE_DRIVER"
	envPostgresDSN         = "POS_POSTGRES_DSN"
	envPostgresAutoMigrate = "POS_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers        = "POS_KAFKA_BROKERS"
	envKafkaTopic          = "POS_KAFKA_TOPIC"
	envStripeSecretKey     = "STRIPE_SECRET_KEY"
	envPaymentCurrency     = "POS_PAYMENT_CURRENCY"
	envCORSAllowOrigins    = "POS_CORS_ALLOW_ORIGINS"
	envRateLimitRPS        = "POS_RATE_LIMIT_RPS"
	envRateLimitBurst      = "POS_RATE_LIMIT_BURST"
	envShutdownTimeout     = "POS_SHUTDOWN_TIMEOUT"
	envLogFormat           = "POS_LOG_FORMAT"
	envLogLevel            = "POS_LOG_LEVEL"

	envDBUser     = "DB_USER"
	envDBPassword = "DB_PASSWORD"
	envDBHost     = "DB_HOST"
	envDBPort     = "DB_PORT"
	envDBName     = "DB_NAME"
	envDBSSLMode  = "DB_SSLMODE"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) []string {
	var warnings []string

	if format, _ := lookupTrimmed(lookup, envLogFormat); strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level := log.InfoLevel
	if raw, ok := lookupTrimmed(lookup, envLogLevel); ok {
		parsed, err := log.ParseLevel(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envLogLevel, err))
		} else {
			level = parsed
		}
	}
	log.SetLevel(level)

	return warnings
}

// readConfigFromEnv формирует конфигурацию приложения. Некорректные значения
// заменяются значениями по умолчанию и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q: %v, using default", key, raw, err))
	}

	if v, ok := lookupTrimmed(lookup, envPort); ok {
		cfg.HTTPAddr = ":" + v
	}
	if v, ok := lookupTrimmed(lookup, envHTTPAddr); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v, ok := lookupTrimmed(lookup, envPostgresDSN); ok {
		cfg.PostgresDSN = v
	} else if dsn, ok := postgresDSNFromParts(lookup); ok {
		cfg.PostgresDSN = dsn
	}
	if v, ok := lookupTrimmed(lookup, envPostgresAutoMigrate); ok {
		if parsed, err := parseBool(v); err != nil {
			warn(envPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envKafkaBrokers); ok {
		cfg.KafkaBrokers = v
	}
	if v, ok := lookupTrimmed(lookup, envKafkaTopic); ok {
		cfg.KafkaTopic = v
	}
	if v, ok := lookupTrimmed(lookup, envStripeSecretKey); ok {
		cfg.StripeSecretKey = v
	}
	if v, ok := lookupTrimmed(lookup, envPaymentCurrency); ok {
		cfg.PaymentCurrency = strings.ToLower(v)
	}
	if v, ok := lookupTrimmed(lookup, envCORSAllowOrigins); ok {
		cfg.CORSAllowOrigins = v
	}
	if v, ok := lookupTrimmed(lookup, envRateLimitRPS); ok {
		if parsed, err := parseFloat(v, func(f float64) bool { return f >= 0 }, "must be >= 0"); err != nil {
			warn(envRateLimitRPS, v, err)
		} else {
			cfg.RateLimitRPS = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envRateLimitBurst); ok {
		if parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0"); err != nil {
			warn(envRateLimitBurst, v, err)
		} else {
			cfg.RateLimitBurst = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envShutdownTimeout); ok {
		if parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0"); err != nil {
			warn(envShutdownTimeout, v, err)
		} else {
			cfg.ShutdownTimeout = parsed
		}
	}

	return cfg, warnings
}

// postgresDSNFromParts собирает DSN из DB_* переменных, если задан хотя бы DB_HOST или DB_NAME.
func postgresDSNFromParts(lookup envLookup) (string, bool) {
	host, hasHost := lookupTrimmed(lookup, envDBHost)
	name, hasName := lookupTrimmed(lookup, envDBName)
	if !hasHost && !hasName {
		return "", false
	}
	if !hasHost {
		host = "localhost"
	}
	if port, ok := lookupTrimmed(lookup, envDBPort); ok {
		host = host + ":" + port
	}

	u := url.URL{Scheme: "postgres", Host: host, Path: "/" + name}
	if user, ok := lookupTrimmed(lookup, envDBUser); ok {
		if password, ok := lookup(envDBPassword); ok && password != "" {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}
	sslMode := "disable"
	if v, ok := lookupTrimmed(lookup, envDBSSLMode); ok {
		sslMode = v
	}
	u.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()

	return u.String(), true
}

func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(v) {
		return 0, errors.New(rule)
	}
	return v, nil
}

func parseFloat(raw string, valid func(float64) bool, rule string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if !valid(v) {
		return 0, errors.New(rule)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(v) {
		return 0, errors.New(rule)
	}
	return v, nil
}

func main() {
	// .env необязателен: переменные окружения процесса имеют приоритет.
	dotenvErr := godotenv.Load()

	warnings := setupLogger(os.LookupEnv)
	if dotenvErr != nil && !errors.Is(dotenvErr, os.ErrNotExist) {
		log.WithError(dotenvErr).Warn("failed to load .env")
	}

	cfg, cfgWarnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range append(warnings, cfgWarnings...) {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
	}).Info("запускаем POS service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("POS service остановлен")
}
