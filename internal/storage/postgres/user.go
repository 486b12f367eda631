package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/shopkeep/internal/domain/user"
)

const (
	getUserSQL = `SELECT id, username, email, active_order, last_order_time
		FROM users WHERE id = $1`

	getUserForUpdateSQL = getUserSQL + ` FOR UPDATE`

	listUserOrdersSQL = `SELECT order_id FROM user_orders WHERE user_id = $1 ORDER BY seq`

	insertUserOrderSQL = `INSERT INTO user_orders (user_id, order_id, recorded_at)
		VALUES ($1, $2, $3) ON CONFLICT (user_id, order_id) DO NOTHING`

	setLastOrderTimeSQL = `UPDATE users SET last_order_time = $2 WHERE id = $1`

	setActiveOrderSQL = `UPDATE users SET active_order = $2 WHERE id = $1`

	countOrderingSinceSQL = `SELECT COUNT(DISTINCT account_number) FROM orders WHERE placed_at >= $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL. The order
// history lives in the user_orders child table.
type UserRepository struct {
	q DBTX
}

// NewUserRepository returns a UserRepository running queries on q.
func NewUserRepository(q DBTX) *UserRepository {
	return &UserRepository{q: q}
}

// Get returns a user and its order history.
func (r *UserRepository) Get(ctx context.Context, id int64) (*user.User, error) {
	return r.get(ctx, getUserSQL, id)
}

// GetForUpdate returns a user and its order history, locking the user row.
func (r *UserRepository) GetForUpdate(ctx context.Context, id int64) (*user.User, error) {
	return r.get(ctx, getUserForUpdateSQL, id)
}

func (r *UserRepository) get(ctx context.Context, query string, id int64) (*user.User, error) {
	var u user.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.ActiveOrder, &u.LastOrderTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}

	rows, err := r.q.Query(ctx, listUserOrdersSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %d: %w", id, err)
	}
	u.Orders, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %d: %w", id, err)
	}
	return &u, nil
}

// RecordOrder appends orderID to the history and updates last_order_time.
func (r *UserRepository) RecordOrder(ctx context.Context, userID, orderID int64, at time.Time) error {
	if _, err := r.q.Exec(ctx, insertUserOrderSQL, userID, orderID, at); err != nil {
		return fmt.Errorf("appending order %d to user %d: %w", orderID, userID, err)
	}
	tag, err := r.q.Exec(ctx, setLastOrderTimeSQL, userID, at)
	if err != nil {
		return fmt.Errorf("setting last order time of user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// SetActiveOrder sets or, for a nil orderID, clears the active order.
func (r *UserRepository) SetActiveOrder(ctx context.Context, userID int64, orderID *int64) error {
	tag, err := r.q.Exec(ctx, setActiveOrderSQL, userID, orderID)
	if err != nil {
		return fmt.Errorf("setting active order of user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// CountOrderingSince counts distinct accounts with an order placed at or after
// since.
func (r *UserRepository) CountOrderingSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, countOrderingSinceSQL, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting active users: %w", err)
	}
	return n, nil
}
