package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/shopkeep/internal/domain/item"
)

// Sentinel errors for order operations.
var (
	ErrNotFound          = errors.New("order not found")
	ErrDuplicateOrder    = errors.New("duplicate order")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// InvalidOrderError indicates a malformed item-quantity mapping.
type InvalidOrderError struct {
	Reason string
}

func (e *InvalidOrderError) Error() string {
	return "invalid order: " + e.Reason
}

// ItemNotFoundError indicates an order references an item missing from the
// catalog.
type ItemNotFoundError struct {
	ItemID int64
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %d not found", e.ItemID)
}

func (e *ItemNotFoundError) Unwrap() error { return item.ErrNotFound }

// TransitionError reports a status change the order lifecycle forbids.
type TransitionError struct {
	OrderID int64
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %d: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
