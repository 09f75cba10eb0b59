package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbusmart/order-service/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Save persists the order and its line items as a single insert, so an order
// is either fully durable or absent. Line items are serialized to JSON for
// the JSONB column.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal line items")
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO orders (order_number, line_items, created_at) VALUES ($1, $2, $3)`,
		o.OrderNumber, items, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "saving order %q", o.OrderNumber)
	}
	return nil
}

// Exists reports whether an order with the given number has been saved.
func (r *OrderRepository) Exists(ctx context.Context, orderNumber string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`,
		orderNumber,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "checking order %q", orderNumber)
	}
	return exists, nil
}
