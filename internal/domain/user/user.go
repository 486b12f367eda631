package user

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// User is a customer account. Orders is the append-only history of completed
// orders, oldest first.
type User struct {
	ID            int64
	Username      string
	Email         string
	ActiveOrder   *int64
	LastOrderTime *time.Time
	Orders        []int64
}

// HasActiveOrder reports whether the user currently references orderID as
// its active order.
func (u *User) HasActiveOrder(orderID int64) bool {
	return u.ActiveOrder != nil && *u.ActiveOrder == orderID
}

// recordOrder appends orderID to the history unless it is already there.
func (u *User) recordOrder(orderID int64, at time.Time) {
	if !slices.Contains(u.Orders, orderID) {
		u.Orders = append(u.Orders, orderID)
	}
	u.LastOrderTime = &at
}

// Repository defines persistence operations for users.
type Repository interface {
	// Get returns the user with its order history loaded.
	Get(ctx context.Context, id int64) (*User, error)
	// GetForUpdate is like Get but locks the user row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*User, error)
	// RecordOrder appends orderID to the user's history (ignoring repeats)
	// and sets the last order time.
	RecordOrder(ctx context.Context, userID, orderID int64, at time.Time) error
	// SetActiveOrder points the user at orderID, or clears the reference
	// when orderID is nil.
	SetActiveOrder(ctx context.Context, userID int64, orderID *int64) error
	// CountOrderingSince counts distinct users with an order placed at or
	// after since.
	CountOrderingSince(ctx context.Context, since time.Time) (int, error)
}
