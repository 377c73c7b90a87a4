package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// insertEventTx пишет событие таймлайна в транзакции мутации заказа.
func insertEventTx(ctx context.Context, tx *sql.Tx, event domain.TimelineEvent) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_events (order_id, type, from_status, to_status, occurred)
		VALUES ($1,$2,$3,$4,$5)
	`, event.OrderID, event.Type, string(event.FromStatus), string(event.ToStatus), event.Occurred); err != nil {
		return fmt.Errorf("append order event: %w", err)
	}
	return nil
}

func listEvents(ctx context.Context, db *sql.DB, orderID int64) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		SELECT order_id, type, from_status, to_status, occurred
		FROM order_events
		WHERE order_id = $1
		ORDER BY occurred ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.TimelineEvent, 0)
	for rows.Next() {
		var (
			event    domain.TimelineEvent
			from, to string
		)
		if err := rows.Scan(&event.OrderID, &event.Type, &from, &to, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		event.FromStatus = domain.OrderStatus(from)
		event.ToStatus = domain.OrderStatus(to)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order events: %w", err)
	}

	return events, nil
}
