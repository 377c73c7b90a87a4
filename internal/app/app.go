package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/httpapi"
	"github.com/vladislavdragonenkov/pos/internal/service/orders"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

const readHeaderTimeout = 5 * time.Second

// Run поднимает REST API и сервер метрик и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Очередь событий дочищается до закрытия Kafka producer в deps.Close.
	stopEvents := startEventDispatcher(ctx, deps)
	defer stopEvents()

	limiter := httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	api := newAPIServer(cfg, deps, limiter)

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	httpSrv := &http.Server{Handler: api.Engine(), ReadHeaderTimeout: readHeaderTimeout}

	metricsSrv := startMetricsServer(cfg.MetricsAddr, logger, newHealthHandler(deps))

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", lis.Addr())
		errCh <- httpSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(httpSrv, cfg.ShutdownTimeout, logger)
		shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startEventDispatcher переводит публикацию событий в фоновую очередь.
// Возвращённая функция останавливает воркер и ждёт доставки оставшихся событий.
func startEventDispatcher(ctx context.Context, deps *Dependencies) func() {
	if deps.Publisher == nil {
		return func() {}
	}

	dispatcher := orders.NewDispatcher(deps.Publisher,
		orders.WithDispatchMetrics(metrics.NewStoreMetrics()),
		orders.WithDispatchLogger(deps.Logger.WithField("layer", "events")),
	)
	deps.Publisher = dispatcher

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.Run(runCtx)
	}()

	return func() {
		cancel()
		<-done
	}
}

// newAPIServer собирает OrderStore и gin-сервер поверх зависимостей.
func newAPIServer(cfg Config, deps *Dependencies, limiter *httpapi.RateLimiter) *httpapi.Server {
	storeOpts := []orders.Option{
		orders.WithTimeline(deps.Timeline),
		orders.WithMetrics(metrics.NewStoreMetrics()),
		orders.WithLogger(deps.Logger.WithField("layer", "store")),
	}
	if deps.Publisher != nil {
		storeOpts = append(storeOpts, orders.WithPublisher(deps.Publisher))
	}
	store := orders.NewStore(deps.Orders, storeOpts...)

	return httpapi.NewServer(
		httpapi.Config{
			PaymentCurrency:  cfg.PaymentCurrency,
			CORSAllowOrigins: cfg.corsOrigins(),
		},
		httpapi.Dependencies{
			Orders:      store,
			Menu:        deps.Menu,
			Payments:    deps.Payments,
			Metrics:     metrics.NewHTTPMetrics(),
			RateLimiter: limiter,
			Logger:      deps.Logger.WithField("layer", "http"),
		},
	)
}

func newHealthHandler(deps *Dependencies) *health.Handler {
	handler := health.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		handler.RegisterChecker("postgres", deps.storageChecker)
	}
	return handler
}

// startMetricsServer запускает HTTP-обработчик /metrics и health checks.
func startMetricsServer(addr string, logger *log.Entry, healthHandler *health.Handler) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	healthHandler.Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
