package order

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order.
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseStatus converts the stored representation back into a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled":
		return StatusCancelled, nil
	default:
		return 0, errors.Errorf("unknown order status %q", s)
	}
}

// CanTransition reports whether an order in status s may move to next.
// Only pending orders move; completed and cancelled are terminal.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && (next == StatusCompleted || next == StatusCancelled)
}

// Line is a single item-quantity entry of an order.
type Line struct {
	ItemID   int64
	Quantity int
}

// Order is a customer order. Lines are kept sorted by item id and item ids
// are unique.
type Order struct {
	ID            int64
	AccountNumber int64
	Status        Status
	Lines         []Line
	// PlacedAt is the creation time and never changes.
	PlacedAt time.Time
	// Timestamp is the time of the last status transition.
	Timestamp time.Time
}

// MaxQuantity is the largest quantity a single line may carry; quantities are
// stored as 32-bit integers.
const MaxQuantity = math.MaxInt32

// New validates lines and builds a pending order owned by accountNumber.
func New(accountNumber int64, lines []Line, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, &InvalidOrderError{Reason: "items required"}
	}

	seen := make(map[int64]struct{}, len(lines))
	sorted := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, &InvalidOrderError{
				Reason: "quantity must be greater than 0 for item " + strconv.FormatInt(l.ItemID, 10),
			}
		}
		if l.Quantity > MaxQuantity {
			return nil, &InvalidOrderError{
				Reason: "quantity exceeds " + strconv.Itoa(MaxQuantity) + " for item " + strconv.FormatInt(l.ItemID, 10),
			}
		}
		if _, dup := seen[l.ItemID]; dup {
			return nil, &InvalidOrderError{
				Reason: "item " + strconv.FormatInt(l.ItemID, 10) + " listed more than once",
			}
		}
		seen[l.ItemID] = struct{}{}
		sorted = append(sorted, l)
	}
	slices.SortFunc(sorted, func(a, b Line) int {
		return cmp.Compare(a.ItemID, b.ItemID)
	})

	return &Order{
		AccountNumber: accountNumber,
		Status:        StatusPending,
		Lines:         sorted,
		PlacedAt:      now,
		Timestamp:     now,
	}, nil
}

// Fingerprint returns the canonical "item:qty,item:qty" form of the order's
// lines. Two orders with the same item-quantity mapping share a fingerprint
// regardless of the order the lines were given in.
func (o *Order) Fingerprint() string {
	var b strings.Builder
	for i, l := range o.Lines {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(l.ItemID, 10))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(l.Quantity))
	}
	return b.String()
}

// Items returns the order's lines as an item id to quantity mapping.
func (o *Order) Items() map[int64]int {
	m := make(map[int64]int, len(o.Lines))
	for _, l := range o.Lines {
		m[l.ItemID] = l.Quantity
	}
	return m
}

// MarkCompleted moves a pending order to completed.
func (o *Order) MarkCompleted(now time.Time) error {
	if !o.Status.CanTransition(StatusCompleted) {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: StatusCompleted}
	}
	o.Status = StatusCompleted
	o.Timestamp = now
	return nil
}

// MarkCancelled moves a pending order to cancelled and reports whether the
// order changed. Cancelling a cancelled order is a no-op and keeps its
// timestamp; cancelling a completed order fails.
func (o *Order) MarkCancelled(now time.Time) (bool, error) {
	if o.Status == StatusCancelled {
		return false, nil
	}
	if !o.Status.CanTransition(StatusCancelled) {
		return false, &TransitionError{OrderID: o.ID, From: o.Status, To: StatusCancelled}
	}
	o.Status = StatusCancelled
	o.Timestamp = now
	return true, nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts o with its lines and assigns o.ID. It reports false
	// without inserting anything when the account already has a pending
	// order with the same fingerprint.
	Create(ctx context.Context, o *Order) (bool, error)
	Get(ctx context.Context, id int64) (*Order, error)
	// GetForUpdate is like Get but locks the order row until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	// UpdateStatus persists o.Status and o.Timestamp.
	UpdateStatus(ctx context.Context, o *Order) error
}
