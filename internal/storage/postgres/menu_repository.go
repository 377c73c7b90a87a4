package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type menuRepository struct {
	db *sql.DB
}

// NewMenuRepository создаёт PostgreSQL-реализацию MenuRepository.
func NewMenuRepository(store *Store) domain.MenuRepository {
	return &menuRepository{db: store.DB()}
}

func (r *menuRepository) List(ctx context.Context) ([]domain.MenuItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, category, price, COALESCE(image, '')
		FROM menu
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	defer rows.Close()

	items := make([]domain.MenuItem, 0)
	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Price, &item.Image); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu items: %w", err)
	}

	return items, nil
}

var _ domain.MenuRepository = (*menuRepository)(nil)
