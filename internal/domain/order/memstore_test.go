package order

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/xenking/shopkeep/internal/domain/item"
	"github.com/xenking/shopkeep/internal/domain/user"
)

// memState is an in-memory database. memTx runs every unit of work against a
// copy and only swaps it in on success, so failed operations roll back.
type memState struct {
	items  map[int64]item.Item
	users  map[int64]user.User
	orders map[int64]Order
	nextID int64

	// failSaveItem makes saving the given item fail with errSave.
	failSaveItem int64
	// failUpdateOrder makes updating the given order fail with errSave.
	failUpdateOrder int64
	// locks records every row lock taken, rolled back or not.
	locks *[]string
}

func newMemState() *memState {
	return &memState{
		items:  make(map[int64]item.Item),
		users:  make(map[int64]user.User),
		orders: make(map[int64]Order),
		nextID: 1,
		locks:  new([]string),
	}
}

func (s *memState) clone() *memState {
	cp := &memState{
		items:           maps.Clone(s.items),
		users:           make(map[int64]user.User, len(s.users)),
		orders:          make(map[int64]Order, len(s.orders)),
		nextID:          s.nextID,
		failSaveItem:    s.failSaveItem,
		failUpdateOrder: s.failUpdateOrder,
		locks:           s.locks,
	}
	for id, u := range s.users {
		u.Orders = slices.Clone(u.Orders)
		if u.ActiveOrder != nil {
			u.ActiveOrder = ptr(*u.ActiveOrder)
		}
		if u.LastOrderTime != nil {
			u.LastOrderTime = ptr(*u.LastOrderTime)
		}
		cp.users[id] = u
	}
	for id, o := range s.orders {
		o.Lines = slices.Clone(o.Lines)
		cp.orders[id] = o
	}
	return cp
}

type memTx struct {
	state *memState
	calls int
}

func (t *memTx) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	t.calls++
	work := t.state.clone()
	if err := fn(ctx, memStores{work}); err != nil {
		return err
	}
	*t.state = *work
	return nil
}

type memStores struct{ s *memState }

func (m memStores) Orders() Repository     { return memOrders(m) }
func (m memStores) Items() item.Repository { return memItems(m) }
func (m memStores) Users() user.Repository { return memUsers(m) }

// --- items ---

type memItems memStores

func (m memItems) Get(_ context.Context, id int64) (*item.Item, error) {
	it, ok := m.s.items[id]
	if !ok {
		return nil, item.ErrNotFound
	}
	return &it, nil
}

func (m memItems) GetForUpdate(ctx context.Context, id int64) (*item.Item, error) {
	return m.Get(ctx, id)
}

func (m memItems) Save(_ context.Context, it *item.Item) error {
	if it.ID == m.s.failSaveItem {
		return errSave
	}
	m.s.items[it.ID] = *it
	return nil
}

func (m memItems) TopSelling(_ context.Context, n int) ([]item.Item, error) {
	return nil, nil
}

// --- users ---

type memUsers memStores

func (m memUsers) Get(_ context.Context, id int64) (*user.User, error) {
	u, ok := m.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u.Orders = slices.Clone(u.Orders)
	return &u, nil
}

func (m memUsers) GetForUpdate(ctx context.Context, id int64) (*user.User, error) {
	*m.s.locks = append(*m.s.locks, fmt.Sprintf("user:%d", id))
	return m.Get(ctx, id)
}

func (m memUsers) RecordOrder(_ context.Context, userID, orderID int64, at time.Time) error {
	u := m.s.users[userID]
	if !slices.Contains(u.Orders, orderID) {
		u.Orders = append(u.Orders, orderID)
	}
	u.LastOrderTime = &at
	m.s.users[userID] = u
	return nil
}

func (m memUsers) SetActiveOrder(_ context.Context, userID int64, orderID *int64) error {
	u := m.s.users[userID]
	u.ActiveOrder = orderID
	m.s.users[userID] = u
	return nil
}

func (m memUsers) CountOrderingSince(_ context.Context, since time.Time) (int, error) {
	accounts := make(map[int64]struct{})
	for _, o := range m.s.orders {
		if !o.PlacedAt.Before(since) {
			accounts[o.AccountNumber] = struct{}{}
		}
	}
	return len(accounts), nil
}

// --- orders ---

type memOrders memStores

func (m memOrders) Create(_ context.Context, o *Order) (bool, error) {
	for _, existing := range m.s.orders {
		if existing.Status == StatusPending &&
			existing.AccountNumber == o.AccountNumber &&
			existing.Fingerprint() == o.Fingerprint() {
			return false, nil
		}
	}
	o.ID = m.s.nextID
	m.s.nextID++
	stored := *o
	stored.Lines = slices.Clone(o.Lines)
	m.s.orders[o.ID] = stored
	return true, nil
}

func (m memOrders) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := m.s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Lines = slices.Clone(o.Lines)
	return &o, nil
}

func (m memOrders) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	*m.s.locks = append(*m.s.locks, fmt.Sprintf("order:%d", id))
	return m.Get(ctx, id)
}

func (m memOrders) UpdateStatus(_ context.Context, o *Order) error {
	if o.ID == m.s.failUpdateOrder {
		return errSave
	}
	stored, ok := m.s.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = o.Status
	stored.Timestamp = o.Timestamp
	m.s.orders[o.ID] = stored
	return nil
}

func ptr[T any](v T) *T { return &v }
