package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	orderColumns = `id, customer_name, order_number, payment_method, total_amount, items,
		status, version, order_date, created_at, updated_at`
)

// OrderRepository — PostgreSQL-реализация domain.OrderRepository.
// Каждая мутация пишет событие таймлайна в той же транзакции.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{db: store.DB()}
}

func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var created domain.Order
	err := inTx(ctx, r.db, "create order", func(tx *sql.Tx) error {
		var err error
		created, err = scanOrder(tx.QueryRowContext(ctx, `
			INSERT INTO orders (
				customer_name, order_number, payment_method, total_amount, items,
				status, version, order_date, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,0,$7,$8,$9)
			RETURNING `+orderColumns,
			order.CustomerName, order.OrderNumber, order.PaymentMethod, order.TotalAmount.StringFixed(2),
			string(itemsOrEmpty(order.Items)), string(order.Status),
			order.OrderDate, order.CreatedAt, order.UpdatedAt,
		))
		if err != nil {
			switch {
			case isUniqueViolation(err):
				return domain.ErrOrderNumberTaken
			case isNumericOverflow(err):
				return domain.ErrTotalAmountTooLarge
			}
			return fmt.Errorf("insert order: %w", err)
		}

		return insertEventTx(ctx, tx, domain.TimelineEvent{
			OrderID:  created.ID,
			Type:     domain.TimelineEventPlaced,
			ToStatus: created.Status,
			Occurred: created.CreatedAt,
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	return created, nil
}

func (r *OrderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *OrderRepository) Status(ctx context.Context, id int64) (domain.OrderStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrOrderNotFound
		}
		return "", fmt.Errorf("select order status: %w", err)
	}
	return domain.OrderStatus(status), nil
}

func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + orderColumns + ` FROM orders`)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query.WriteString(` WHERE status = $` + strconv.Itoa(len(args)))
	}
	query.WriteString(` ORDER BY created_at DESC, id DESC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query.WriteString(` OFFSET $` + strconv.Itoa(len(args)))
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// UpdateStatus сохраняет новый статус, если в базе всё ещё лежит версия order.Version
// в статусе from. Иначе ErrOrderNotFound или ErrOrderVersionConflict.
func (r *OrderRepository) UpdateStatus(ctx context.Context, order domain.Order, from domain.OrderStatus) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var updated domain.Order
	err := inTx(ctx, r.db, "update order status", func(tx *sql.Tx) error {
		var err error
		updated, err = scanOrder(tx.QueryRowContext(ctx, `
			UPDATE orders
			SET status = $1,
			    version = version + 1,
			    updated_at = $2
			WHERE id = $3
			  AND version = $4
			  AND status = $5
			RETURNING `+orderColumns,
			string(order.Status), order.UpdatedAt, order.ID, order.Version, string(from),
		))
		if errors.Is(err, sql.ErrNoRows) {
			exists, existsErr := orderExistsTx(ctx, tx, order.ID)
			switch {
			case existsErr != nil:
				return existsErr
			case !exists:
				return domain.ErrOrderNotFound
			default:
				return domain.ErrOrderVersionConflict
			}
		}
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		return insertEventTx(ctx, tx, domain.TimelineEvent{
			OrderID:    updated.ID,
			Type:       domain.TimelineEventStatusChanged,
			FromStatus: from,
			ToStatus:   updated.Status,
			Occurred:   updated.UpdatedAt,
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id int64, at time.Time) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var deleted domain.Order
	err := inTx(ctx, r.db, "delete order", func(tx *sql.Tx) error {
		var err error
		deleted, err = scanOrder(tx.QueryRowContext(ctx, `
			DELETE FROM orders
			WHERE id = $1
			RETURNING `+orderColumns, id))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}

		return insertEventTx(ctx, tx, domain.TimelineEvent{
			OrderID:    deleted.ID,
			Type:       domain.TimelineEventDeleted,
			FromStatus: deleted.Status,
			Occurred:   at.UTC(),
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	return deleted, nil
}

// Events возвращает историю заказа; см. timeline_repository.go.
func (r *OrderRepository) Events(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	return listEvents(ctx, r.db, orderID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
		items  []byte
	)
	if err := row.Scan(
		&order.ID, &order.CustomerName, &order.OrderNumber, &order.PaymentMethod,
		&order.TotalAmount, &items, &status, &order.Version,
		&order.OrderDate, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.Items = itemsOrEmpty(items)
	return order, nil
}

func itemsOrEmpty(items []byte) []byte {
	if len(items) == 0 {
		return []byte("[]")
	}
	return items
}

func orderExistsTx(ctx context.Context, tx *sql.Tx, orderID int64) (bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	return hasPgCode(err, "23505")
}

// isNumericOverflow — значение не помещается в NUMERIC(p,s).
func isNumericOverflow(err error) bool {
	return hasPgCode(err, "22003")
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

var (
	_ domain.OrderRepository    = (*OrderRepository)(nil)
	_ domain.TimelineRepository = (*OrderRepository)(nil)
)
