package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Cart is a user's active shopping cart. There is exactly one per user; it is
// created lazily on first access and persists indefinitely.
type Cart struct {
	ID        string
	UserID    string
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalItems returns the sum of all item quantities. Recomputed on every
// call; totals are never stored.
func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice returns the sum of quantity x snapshot unit price over all
// items.
func (c *Cart) TotalPrice() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// Item is a single cart line. For a given (cart, product) pair there is at
// most one Item; repeated adds merge into its quantity. UnitPrice is the
// product price captured when the line was first created and is never
// rewritten by later catalog price changes.
type Item struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subtotal returns quantity x snapshot unit price.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Repository defines persistence operations for carts and cart items.
//
// Implementations must enforce uniqueness of carts per user and of items per
// (cart, product) pair, returning ErrConflict when an insert loses a race to
// a concurrent writer. UpdateItemQuantity writes the quantity column only;
// the unit price snapshot is excluded from every update's write set.
type Repository interface {
	GetByUser(ctx context.Context, userID string) (*Cart, error)
	Get(ctx context.Context, cartID string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error

	ListItems(ctx context.Context, cartID string) ([]Item, error)
	FindItem(ctx context.Context, cartID, productID string) (*Item, error)
	GetItem(ctx context.Context, itemID string) (*Item, error)
	InsertItem(ctx context.Context, item *Item) error
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error
	DeleteItem(ctx context.Context, itemID string) error
}
