package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
	"github.com/vladislavdragonenkov/pos/internal/storage/postgres"
)

// storage — репозитории выбранного бэкенда и функция освобождения ресурсов.
type storage struct {
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	menu     domain.MenuRepository
	checker  health.Checker
	closeFn  func() error
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storage, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		repo := memory.NewOrderRepository()
		logger.Info("using in-memory storage")
		return &storage{
			orders:   repo,
			timeline: repo,
			menu:     memory.NewMenuRepository(demoMenu()...),
		}, nil
	case StorageDriverPostgres:
		return initPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initPostgres(ctx context.Context, cfg Config, logger *log.Entry) (*storage, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres dsn is required for postgres storage driver")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("postgres schema is up to date")
	}

	repo := postgres.NewOrderRepository(store)
	logger.Info("using postgres storage")
	return &storage{
		orders:   repo,
		timeline: repo,
		menu:     postgres.NewMenuRepository(store),
		checker:  health.CheckerFunc(store.Ping),
		closeFn:  store.Close,
	}, nil
}

// demoMenu — меню для запуска без базы данных.
func demoMenu() []domain.MenuItem {
	return []domain.MenuItem{
		{ID: 1, Name: "Classic Burger", Category: "Burgers", Price: decimal.RequireFromString("8.99")},
		{ID: 2, Name: "Cheeseburger", Category: "Burgers", Price: decimal.RequireFromString("9.49")},
		{ID: 3, Name: "French Fries", Category: "Sides", Price: decimal.RequireFromString("3.50")},
		{ID: 4, Name: "Onion Rings", Category: "Sides", Price: decimal.RequireFromString("4.25")},
		{ID: 5, Name: "Cola", Category: "Drinks", Price: decimal.RequireFromString("1.99")},
		{ID: 6, Name: "Milkshake", Category: "Drinks", Price: decimal.RequireFromString("4.99")},
	}
}
