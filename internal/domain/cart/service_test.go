package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-api/internal/domain/auth"
	"github.com/xenking/storefront-api/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	mu   sync.Mutex
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) GetByCode(_ context.Context, _ string) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) setPrice(id string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Price = price
}

// mockCartRepo emulates the store-level uniqueness guarantees: one cart per
// user, one item per (cart, product). Inserts that lose a race return
// ErrConflict, like the unique constraints in the postgres implementation.
type mockCartRepo struct {
	mu     sync.Mutex
	carts  map[string]*Cart // by cart ID
	byUser map[string]string
	items  map[string]*Item // by item ID
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{
		carts:  make(map[string]*Cart),
		byUser: make(map[string]string),
		items:  make(map[string]*Item),
	}
}

func (m *mockCartRepo) GetByUser(_ context.Context, userID string) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.carts[id]
	return &cp, nil
}

func (m *mockCartRepo) Get(_ context.Context, cartID string) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCartRepo) Create(_ context.Context, c *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUser[c.UserID]; ok {
		return ErrConflict
	}
	cp := *c
	m.carts[c.ID] = &cp
	m.byUser[c.UserID] = c.ID
	return nil
}

func (m *mockCartRepo) ListItems(_ context.Context, cartID string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []Item
	for _, item := range m.items {
		if item.CartID == cartID {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (m *mockCartRepo) FindItem(_ context.Context, cartID, productID string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.CartID == cartID && item.ProductID == productID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, ErrItemNotFound
}

func (m *mockCartRepo) GetItem(_ context.Context, itemID string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *mockCartRepo) InsertItem(_ context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.CartID == item.CartID && existing.ProductID == item.ProductID {
			return ErrConflict
		}
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockCartRepo) UpdateItemQuantity(_ context.Context, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	// Quantity only: the snapshot price is not part of the write set.
	item.Quantity = quantity
	return nil
}

func (m *mockCartRepo) DeleteItem(_ context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[itemID]; !ok {
		return ErrItemNotFound
	}
	delete(m.items, itemID)
	return nil
}

func (m *mockCartRepo) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestProduct(id string, price decimal.Decimal, stock int) *product.Product {
	return &product.Product{
		ID:       id,
		Code:     "SKU-" + id,
		Name:     "Widget " + id,
		Price:    price,
		Quantity: stock,
		Category: "test",
	}
}

func newFixture(products ...*product.Product) (*Service, *mockProductRepo, *mockCartRepo) {
	byID := make(map[string]*product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	productRepo := &mockProductRepo{byID: byID}
	cartRepo := newMockCartRepo()
	return NewService(productRepo, cartRepo), productRepo, cartRepo
}

var alice = auth.Identity{UserID: "alice"}

// --- Tests ---

func TestAddItem_CreatesLineWithSnapshotPrice(t *testing.T) {
	svc, _, _ := newFixture(newTestProduct("p1", d("10.00"), 5))

	item, err := svc.AddItem(context.Background(), alice, "p1", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, item.Quantity)
	assert.True(t, d("10.00").Equal(item.UnitPrice))
	assert.True(t, d("20.00").Equal(item.Subtotal()))
}

func TestAddItem_MergesOnRepeatedAdd(t *testing.T) {
	svc, _, repo := newFixture(newTestProduct("p1", d("10.00"), 10))

	first, err := svc.AddItem(context.Background(), alice, "p1", 3)
	require.NoError(t, err)

	second, err := svc.AddItem(context.Background(), alice, "p1", 4)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "repeated add must merge, not duplicate")
	assert.Equal(t, 7, second.Quantity)
	assert.Equal(t, 1, repo.itemCount())
}

func TestAddItem_SnapshotSurvivesPriceChange(t *testing.T) {
	svc, products, _ := newFixture(newTestProduct("p1", d("10.00"), 10))

	_, err := svc.AddItem(context.Background(), alice, "p1", 1)
	require.NoError(t, err)

	// Catalog price change between adds must not rewrite the snapshot.
	products.setPrice("p1", d("99.99"))

	item, err := svc.AddItem(context.Background(), alice, "p1", 1)
	require.NoError(t, err)

	assert.True(t, d("10.00").Equal(item.UnitPrice))
	assert.True(t, d("20.00").Equal(item.Subtotal()))
}

func TestAddItem_StockCeiling(t *testing.T) {
	svc, _, repo := newFixture(newTestProduct("p1", d("5.00"), 5))

	_, err := svc.AddItem(context.Background(), alice, "p1", 6)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 0, repo.itemCount(), "failed add must not create an item")

	item, err := svc.AddItem(context.Background(), alice, "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
}

func TestAddItem_StockCeilingOnMerge(t *testing.T) {
	svc, _, _ := newFixture(newTestProduct("p1", d("5.00"), 5))

	_, err := svc.AddItem(context.Background(), alice, "p1", 3)
	require.NoError(t, err)

	// 3 + 3 exceeds the 5 in stock; the merge path must revalidate.
	_, err = svc.AddItem(context.Background(), alice, "p1", 3)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 6, stockErr.Requested)

	c, err := svc.GetCart(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 3, c.TotalItems(), "failed merge must not change quantity")
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	svc, _, repo := newFixture(newTestProduct("p1", d("5.00"), 5))

	for _, qty := range []int{0, -1} {
		_, err := svc.AddItem(context.Background(), alice, "p1", qty)
		var qtyErr *InvalidQuantityError
		require.ErrorAs(t, err, &qtyErr)
		assert.Equal(t, qty, qtyErr.Quantity)
	}
	assert.Equal(t, 0, repo.itemCount())
}

func TestAddItem_ProductNotFound(t *testing.T) {
	svc, _, _ := newFixture()

	_, err := svc.AddItem(context.Background(), alice, "missing", 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAddItem_AnonymousForbidden(t *testing.T) {
	svc, _, _ := newFixture(newTestProduct("p1", d("5.00"), 5))

	_, err := svc.AddItem(context.Background(), auth.Identity{}, "p1", 1)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAddItem_ConcurrentAddsMergeIntoOneLine(t *testing.T) {
	svc, _, repo := newFixture(newTestProduct("p1", d("1.00"), 100))

	const concurrent = 50

	var wg sync.WaitGroup
	wg.Add(concurrent)
	errs := make(chan error, concurrent)
	for range concurrent {
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(context.Background(), alice, "p1", 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, 1, repo.itemCount(), "concurrent adds must not duplicate the line")

	c, err := svc.GetCart(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, concurrent, c.Items[0].Quantity)
}

func TestAddItem_ConcurrentUsersGetDistinctCarts(t *testing.T) {
	svc, _, _ := newFixture(newTestProduct("p1", d("1.00"), 100))

	users := []auth.Identity{{UserID: "u1"}, {UserID: "u2"}, {UserID: "u3"}}

	var wg sync.WaitGroup
	for _, id := range users {
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.AddItem(context.Background(), id, "p1", 1)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for _, id := range users {
		c, err := svc.GetCart(context.Background(), id)
		require.NoError(t, err)
		require.Len(t, c.Items, 1)
		assert.Equal(t, 10, c.Items[0].Quantity)
	}
}

func TestUpdateItemQuantity(t *testing.T) {
	svc, _, _ := newFixture(newTestProduct("p1", d("10.00"), 5))

	item, err := svc.AddItem(context.Background(), alice, "p1", 1)
	require.NoError(t, err)

	updated, err := svc.UpdateItemQuantity(context.Background(), alice, item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.True(t, d("10.00").Equal(updated.UnitPrice))
}

func TestUpdateItemQuantity_Validation(t *testing.T) {
	svc, _, _ := newFixture(newTestProduct("p1", d("10.00"), 5))

	item, err := svc.AddItem(context.Background(), alice, "p1", 1)
	require.NoError(t, err)

	_, err = svc.UpdateItemQuantity(context.Background(), alice, item.ID, 0)
	var qtyErr *InvalidQuantityError
	require.ErrorAs(t, err, &qtyErr)

	_, err = svc.UpdateItemQuantity(context.Background(), alice, item.ID, 6)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
}

func TestUpdateItemQuantity_OwnershipEnforced(t *testing.T) {
	svc, _, _ := newFixture(newTestProduct("p1", d("10.00"), 5))

	item, err := svc.AddItem(context.Background(), alice, "p1", 1)
	require.NoError(t, err)

	_, err = svc.UpdateItemQuantity(context.Background(), auth.Identity{UserID: "mallory"}, item.ID, 2)
	require.ErrorIs(t, err, ErrForbidden)

	// Elevated identities bypass the ownership check.
	staff := auth.Identity{UserID: "staff", Elevated: true}
	updated, err := svc.UpdateItemQuantity(context.Background(), staff, item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity)
}

func TestRemoveItem(t *testing.T) {
	svc, _, repo := newFixture(newTestProduct("p1", d("10.00"), 5))

	item, err := svc.AddItem(context.Background(), alice, "p1", 1)
	require.NoError(t, err)

	err = svc.RemoveItem(context.Background(), auth.Identity{UserID: "mallory"}, item.ID)
	require.ErrorIs(t, err, ErrForbidden)

	err = svc.RemoveItem(context.Background(), alice, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.itemCount())

	err = svc.RemoveItem(context.Background(), alice, item.ID)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestGetCart_TotalsRecomputed(t *testing.T) {
	svc, _, _ := newFixture(
		newTestProduct("p1", d("10.00"), 10),
		newTestProduct("p2", d("3.50"), 10),
	)

	_, err := svc.AddItem(context.Background(), alice, "p1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), alice, "p2", 3)
	require.NoError(t, err)

	c, err := svc.GetCart(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, 5, c.TotalItems())
	assert.True(t, d("30.50").Equal(c.TotalPrice()))

	// Totals follow every mutation.
	_, err = svc.AddItem(context.Background(), alice, "p1", 1)
	require.NoError(t, err)

	c, err = svc.GetCart(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 6, c.TotalItems())
	assert.True(t, d("40.50").Equal(c.TotalPrice()))
}

func TestGetCart_CreatedLazily(t *testing.T) {
	svc, _, _ := newFixture()

	c, err := svc.GetCart(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.UserID)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0, c.TotalItems())
	assert.True(t, decimal.Zero.Equal(c.TotalPrice()))

	// Second access resolves the same cart.
	again, err := svc.GetCart(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
}

func TestAddItem_RetriesExhaustedSurfaceConflict(t *testing.T) {
	productRepo := &mockProductRepo{byID: map[string]*product.Product{
		"p1": newTestProduct("p1", d("1.00"), 10),
	}}
	repo := &alwaysConflictRepo{mockCartRepo: newMockCartRepo()}
	svc := NewService(productRepo, repo)

	_, err := svc.AddItem(context.Background(), alice, "p1", 1)
	require.ErrorIs(t, err, ErrConflict)
}

// alwaysConflictRepo simulates a writer that keeps losing the insert race:
// the item is never visible on read, yet every insert conflicts.
type alwaysConflictRepo struct {
	*mockCartRepo
}

func (r *alwaysConflictRepo) FindItem(_ context.Context, _, _ string) (*Item, error) {
	return nil, ErrItemNotFound
}

func (r *alwaysConflictRepo) InsertItem(_ context.Context, _ *Item) error {
	return ErrConflict
}

func TestCartTotals_EmptyCart(t *testing.T) {
	c := &Cart{}
	assert.Equal(t, 0, c.TotalItems())
	assert.True(t, decimal.Zero.Equal(c.TotalPrice()))
}

func TestRepositoryErrorsWrapped(t *testing.T) {
	svc, _, _ := newFixture(newTestProduct("p1", d("1.00"), 10))

	_, err := svc.UpdateItemQuantity(context.Background(), alice, "no-such-item", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrItemNotFound))
}
