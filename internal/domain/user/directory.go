package user

import (
	"context"
	"fmt"
	"time"
)

// InvalidWindowError indicates a non-positive activity window.
type InvalidWindowError struct {
	Days int
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("days must be greater than 0, got %d", e.Days)
}

// Directory implements the user operations used by orders and reports.
type Directory struct {
	users Repository
	now   func() time.Time
}

// NewDirectory returns a Directory backed by users. A nil clock means
// time.Now.
func NewDirectory(users Repository, now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{users: users, now: now}
}

// Get returns a single user with its order history.
func (d *Directory) Get(ctx context.Context, id int64) (*User, error) {
	return d.users.Get(ctx, id)
}

// RecordOrder appends orderID to u's history and moves its last order time to
// at. Ownership of the order is not checked.
func (d *Directory) RecordOrder(ctx context.Context, u *User, orderID int64, at time.Time) error {
	if err := d.users.RecordOrder(ctx, u.ID, orderID, at); err != nil {
		return fmt.Errorf("record order %d for user %d: %w", orderID, u.ID, err)
	}
	u.recordOrder(orderID, at)
	return nil
}

// SetActiveOrder makes orderID the user's active order.
func (d *Directory) SetActiveOrder(ctx context.Context, u *User, orderID int64) error {
	if err := d.users.SetActiveOrder(ctx, u.ID, &orderID); err != nil {
		return fmt.Errorf("set active order for user %d: %w", u.ID, err)
	}
	u.ActiveOrder = &orderID
	return nil
}

// ReleaseActiveOrder clears the user's active order if it is orderID.
func (d *Directory) ReleaseActiveOrder(ctx context.Context, u *User, orderID int64) error {
	if !u.HasActiveOrder(orderID) {
		return nil
	}
	if err := d.users.SetActiveOrder(ctx, u.ID, nil); err != nil {
		return fmt.Errorf("clear active order for user %d: %w", u.ID, err)
	}
	u.ActiveOrder = nil
	return nil
}

// CountActiveInWindow returns how many distinct users placed at least one
// order during the last days days.
func (d *Directory) CountActiveInWindow(ctx context.Context, days int) (int, error) {
	if days < 1 {
		return 0, &InvalidWindowError{Days: days}
	}
	since := d.now().AddDate(0, 0, -days)
	n, err := d.users.CountOrderingSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}
