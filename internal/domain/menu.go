package domain

import "github.com/shopspring/decimal"

// MenuPlaceholderImage подставляется, если у позиции меню нет картинки.
const MenuPlaceholderImage = "https://via.placeholder.com/150"

// MenuItem — позиция меню, доступная только на чтение.
type MenuItem struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
}

// WithDefaults возвращает копию позиции с подставленной картинкой.
func (m MenuItem) WithDefaults() MenuItem {
	if m.Image == "" {
		m.Image = MenuPlaceholderImage
	}
	return m
}
