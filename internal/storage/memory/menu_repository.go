package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// menuRepositoryInMemory — неизменяемое меню, заданное при создании.
type menuRepositoryInMemory struct {
	items []domain.MenuItem
}

// NewMenuRepository возвращает меню из переданных позиций, отсортированных по ID.
func NewMenuRepository(items ...domain.MenuItem) domain.MenuRepository {
	sorted := make([]domain.MenuItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &menuRepositoryInMemory{items: sorted}
}

// List возвращает копию меню.
func (r *menuRepositoryInMemory) List(ctx context.Context) ([]domain.MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]domain.MenuItem, len(r.items))
	copy(result, r.items)
	return result, nil
}

var _ domain.MenuRepository = (*menuRepositoryInMemory)(nil)
