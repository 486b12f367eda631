package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/shopkeep/internal/domain/item"
)

const (
	getItemSQL = `SELECT id, name, price, stock, sold FROM items WHERE id = $1`

	getItemForUpdateSQL = getItemSQL + ` FOR UPDATE`

	saveItemSQL = `UPDATE items SET stock = $2, sold = $3 WHERE id = $1`

	topSellingItemsSQL = `SELECT id, name, price, stock, sold
		FROM items ORDER BY sold DESC, id ASC LIMIT $1`
)

var _ item.Repository = (*ItemRepository)(nil)

// ItemRepository implements item.Repository backed by PostgreSQL.
type ItemRepository struct {
	q DBTX
}

// NewItemRepository returns an ItemRepository running queries on q.
func NewItemRepository(q DBTX) *ItemRepository {
	return &ItemRepository{q: q}
}

// Get returns a single item by its identifier.
func (r *ItemRepository) Get(ctx context.Context, id int64) (*item.Item, error) {
	return r.get(ctx, getItemSQL, id)
}

// GetForUpdate returns a single item and locks its row.
func (r *ItemRepository) GetForUpdate(ctx context.Context, id int64) (*item.Item, error) {
	return r.get(ctx, getItemForUpdateSQL, id)
}

func (r *ItemRepository) get(ctx context.Context, query string, id int64) (*item.Item, error) {
	rows, err := r.q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("getting item %d: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, item.ErrNotFound
		}
		return nil, fmt.Errorf("getting item %d: %w", id, err)
	}
	return &it, nil
}

// Save writes the stock and sold counters of it.
func (r *ItemRepository) Save(ctx context.Context, it *item.Item) error {
	tag, err := r.q.Exec(ctx, saveItemSQL, it.ID, it.Stock, it.Sold)
	if err != nil {
		return fmt.Errorf("saving item %d: %w", it.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return item.ErrNotFound
	}
	return nil
}

// TopSelling returns up to n items with the most units sold.
func (r *ItemRepository) TopSelling(ctx context.Context, n int) ([]item.Item, error) {
	rows, err := r.q.Query(ctx, topSellingItemsSQL, n)
	if err != nil {
		return nil, fmt.Errorf("listing top selling items: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

func scanItem(row pgx.CollectableRow) (item.Item, error) {
	var it item.Item
	err := row.Scan(&it.ID, &it.Name, &it.Price, &it.Stock, &it.Sold)
	return it, err
}
