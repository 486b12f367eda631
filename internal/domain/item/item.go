package item

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog operations.
var (
	ErrNotFound        = errors.New("item not found")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Item is a catalog entry with its running stock and sales counters.
type Item struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int
	Sold  int
}

// InsufficientStockError reports a fulfillment that asked for more units than
// the item has in stock.
type InsufficientStockError struct {
	ItemID    int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}

// Fulfill moves qty units from stock to sold. The item is left untouched when
// it returns an error.
func (it *Item) Fulfill(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > it.Stock {
		return &InsufficientStockError{
			ItemID:    it.ID,
			Requested: qty,
			Available: it.Stock,
		}
	}
	it.Stock -= qty
	it.Sold += qty
	return nil
}

// Repository defines persistence operations for catalog items.
type Repository interface {
	Get(ctx context.Context, id int64) (*Item, error)
	// GetForUpdate is like Get but locks the row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Item, error)
	// Save persists the stock and sold counters of it.
	Save(ctx context.Context, it *Item) error
	// TopSelling returns up to n items ordered by sold units descending,
	// ties broken by ascending id.
	TopSelling(ctx context.Context, n int) ([]Item, error)
}
