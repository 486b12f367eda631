package item

import (
	"context"
	"fmt"
)

// MaxTop bounds the size of a top-selling report.
const MaxTop = 100

// InvalidLimitError indicates a top-selling request outside [1, MaxTop].
type InvalidLimitError struct {
	N int
}

func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("n must be between 1 and %d, got %d", MaxTop, e.N)
}

// Catalog implements the item operations used by orders and reports.
type Catalog struct {
	items Repository
}

// NewCatalog returns a Catalog on top of the given repository. Pass a
// transaction-scoped repository to make Fulfill part of a larger unit of work.
func NewCatalog(items Repository) *Catalog {
	return &Catalog{items: items}
}

// Get returns a single item.
func (c *Catalog) Get(ctx context.Context, id int64) (*Item, error) {
	return c.items.Get(ctx, id)
}

// Fulfill locks the item, applies qty against its stock and persists it.
// It is all-or-nothing: on InsufficientStockError nothing is written.
func (c *Catalog) Fulfill(ctx context.Context, id int64, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	it, err := c.items.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := it.Fulfill(qty); err != nil {
		return nil, err
	}
	if err := c.items.Save(ctx, it); err != nil {
		return nil, fmt.Errorf("save item %d: %w", id, err)
	}
	return it, nil
}

// TopSelling returns the n items with the most units sold. Ranking is by unit
// count, not revenue.
func (c *Catalog) TopSelling(ctx context.Context, n int) ([]Item, error) {
	if n < 1 || n > MaxTop {
		return nil, &InvalidLimitError{N: n}
	}
	items, err := c.items.TopSelling(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("top selling items: %w", err)
	}
	return items, nil
}
