package item

import (
	"context"
	"slices"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockRepo struct {
	byID    map[int64]Item
	saveErr error
	saved   []Item
	topN    int
}

func newMockRepo(items ...Item) *mockRepo {
	m := &mockRepo{byID: make(map[int64]Item, len(items))}
	for _, it := range items {
		m.byID[it.ID] = it
	}
	return m
}

func (m *mockRepo) Get(_ context.Context, id int64) (*Item, error) {
	it, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id int64) (*Item, error) {
	return m.Get(ctx, id)
}

func (m *mockRepo) Save(_ context.Context, it *Item) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.byID[it.ID] = *it
	m.saved = append(m.saved, *it)
	return nil
}

func (m *mockRepo) TopSelling(_ context.Context, n int) ([]Item, error) {
	m.topN = n
	items := make([]Item, 0, len(m.byID))
	for _, it := range m.byID {
		items = append(items, it)
	}
	slices.SortFunc(items, func(a, b Item) int {
		if a.Sold != b.Sold {
			return b.Sold - a.Sold
		}
		return int(a.ID - b.ID)
	})
	return items[:min(n, len(items))], nil
}

func widget(id int64, stock, sold int) Item {
	return Item{ID: id, Name: "widget", Price: decimal.RequireFromString("9.99"), Stock: stock, Sold: sold}
}

// --- Tests ---

func TestItemFulfill(t *testing.T) {
	it := widget(1, 10, 2)
	require.NoError(t, it.Fulfill(4))
	assert.Equal(t, 6, it.Stock)
	assert.Equal(t, 6, it.Sold)

	require.NoError(t, it.Fulfill(6))
	assert.Equal(t, 0, it.Stock, "exact stock may be taken")
	assert.Equal(t, 12, it.Sold)
}

func TestItemFulfill_InsufficientStockLeavesItemUnchanged(t *testing.T) {
	it := widget(1, 10, 0)
	err := it.Fulfill(11)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(1), stockErr.ItemID)
	assert.Equal(t, 11, stockErr.Requested)
	assert.Equal(t, 10, stockErr.Available)
	assert.Equal(t, 10, it.Stock)
	assert.Equal(t, 0, it.Sold)
}

func TestItemFulfill_NonPositiveQuantity(t *testing.T) {
	it := widget(1, 10, 0)
	require.ErrorIs(t, it.Fulfill(0), ErrInvalidQuantity)
	require.ErrorIs(t, it.Fulfill(-3), ErrInvalidQuantity)
	assert.Equal(t, widget(1, 10, 0), it)
}

func TestCatalogFulfill(t *testing.T) {
	repo := newMockRepo(widget(1, 5, 0))
	c := NewCatalog(repo)

	it, err := c.Fulfill(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, it.Stock)
	assert.Equal(t, 3, it.Sold)
	assert.Equal(t, 2, repo.byID[1].Stock)
}

func TestCatalogFulfill_InsufficientStockWritesNothing(t *testing.T) {
	repo := newMockRepo(widget(1, 5, 0))
	c := NewCatalog(repo)

	_, err := c.Fulfill(context.Background(), 1, 6)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Empty(t, repo.saved)
	assert.Equal(t, 5, repo.byID[1].Stock)
}

func TestCatalogFulfill_Errors(t *testing.T) {
	repo := newMockRepo(widget(1, 5, 0))
	c := NewCatalog(repo)

	_, err := c.Fulfill(context.Background(), 99, 1)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = c.Fulfill(context.Background(), 1, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	repo.saveErr = errors.New("connection reset")
	_, err = c.Fulfill(context.Background(), 1, 1)
	require.ErrorIs(t, err, repo.saveErr)
}

func TestCatalogTopSelling(t *testing.T) {
	repo := newMockRepo(widget(1, 0, 10), widget(2, 0, 5), widget(3, 0, 20), widget(4, 0, 1))
	c := NewCatalog(repo)

	top, err := c.TopSelling(context.Background(), 3)
	require.NoError(t, err)

	ids := make([]int64, 0, len(top))
	for _, it := range top {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []int64{3, 1, 2}, ids)
}

func TestCatalogTopSelling_Limits(t *testing.T) {
	repo := newMockRepo(widget(1, 0, 1))
	c := NewCatalog(repo)

	for _, n := range []int{0, -1, MaxTop + 1} {
		_, err := c.TopSelling(context.Background(), n)
		var limitErr *InvalidLimitError
		require.ErrorAs(t, err, &limitErr, "n=%d", n)
		assert.Equal(t, n, limitErr.N)
	}

	top, err := c.TopSelling(context.Background(), MaxTop)
	require.NoError(t, err)
	assert.Len(t, top, 1, "fewer items than n returns what exists")
	assert.Equal(t, MaxTop, repo.topN)
}
