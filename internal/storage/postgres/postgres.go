// Package postgres implements the domain repositories on PostgreSQL via pgx.
package postgres

import (
	"context"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shopkeep/db"
	"github.com/xenking/shopkeep/internal/domain/item"
	"github.com/xenking/shopkeep/internal/domain/order"
	"github.com/xenking/shopkeep/internal/domain/user"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx, so the same
// repository works inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

var _ order.Transactor = (*Transactor)(nil)

// Transactor runs units of work in pgx transactions.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a Transactor drawing connections from pool.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// InTx begins a transaction, hands fn repositories bound to it, and commits
// when fn succeeds. pgx.BeginFunc rolls back on error or panic and always
// returns the connection to the pool.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context, s order.Stores) error) error {
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(ctx, stores{q: tx})
	})
}

// stores binds every repository to the same query surface.
type stores struct {
	q DBTX
}

func (s stores) Orders() order.Repository { return NewOrderRepository(s.q) }
func (s stores) Items() item.Repository   { return NewItemRepository(s.q) }
func (s stores) Users() user.Repository   { return NewUserRepository(s.q) }
