package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/shopkeep/internal/domain/order"
)

const (
	// The conflict target matches the partial unique index on pending
	// orders, so the duplicate check and the insert are one statement.
	createOrderSQL = `INSERT INTO orders (account_number, status, fingerprint, placed_at, "timestamp")
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_number, fingerprint) WHERE status = 'pending' DO NOTHING
		RETURNING id`

	getOrderSQL = `SELECT id, account_number, status, placed_at, "timestamp"
		FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	listOrderLinesSQL = `SELECT item_id, quantity FROM order_line_items
		WHERE order_id = $1 ORDER BY item_id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, "timestamp" = $3 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items are rows of order_line_items.
type OrderRepository struct {
	q DBTX
}

// NewOrderRepository returns an OrderRepository running queries on q.
func NewOrderRepository(q DBTX) *OrderRepository {
	return &OrderRepository{q: q}
}

// Create inserts the order and its line items. It reports false when the
// account already has a pending order with the same fingerprint.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (bool, error) {
	var id int64
	err := r.q.QueryRow(ctx, createOrderSQL,
		o.AccountNumber, o.Status.String(), o.Fingerprint(), o.PlacedAt, o.Timestamp,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("creating order for account %d: %w", o.AccountNumber, err)
	}

	lines := make([][]any, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = []any{id, l.ItemID, l.Quantity}
	}
	_, err = r.q.CopyFrom(ctx,
		pgx.Identifier{"order_line_items"},
		[]string{"order_id", "item_id", "quantity"},
		pgx.CopyFromRows(lines),
	)
	if err != nil {
		return false, fmt.Errorf("creating lines of order %d: %w", id, err)
	}

	o.ID = id
	return true, nil
}

// Get returns an order with its lines.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	return r.get(ctx, getOrderSQL, id)
}

// GetForUpdate returns an order with its lines and locks the order row.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	return r.get(ctx, getOrderForUpdateSQL, id)
}

func (r *OrderRepository) get(ctx context.Context, query string, id int64) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := r.q.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.AccountNumber, &status, &o.PlacedAt, &o.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	if o.Status, err = order.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	rows, err := r.q.Query(ctx, listOrderLinesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing lines of order %d: %w", id, err)
	}
	o.Lines, err = pgx.CollectRows(rows, pgx.RowToStructByPos[order.Line])
	if err != nil {
		return nil, fmt.Errorf("listing lines of order %d: %w", id, err)
	}
	return &o, nil
}

// UpdateStatus writes the order's status and timestamp.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *order.Order) error {
	tag, err := r.q.Exec(ctx, updateOrderStatusSQL, o.ID, o.Status.String(), o.Timestamp)
	if err != nil {
		return fmt.Errorf("updating order %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}
