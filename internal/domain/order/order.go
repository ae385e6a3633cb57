package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order is an immutable record of a purchase. Total is computed server-side
// as price x quantity at creation time from the product price observed in
// that operation; it is never recalculated and never writable by callers.
type Order struct {
	ID        string
	ProductID string
	Quantity  int
	Total     decimal.Decimal
	CreatedAt time.Time
}

// Repository defines persistence operations for orders. Orders are append
// only: there is no update.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	List(ctx context.Context) ([]Order, error)
}

// InvalidQuantityError indicates a non-positive requested quantity.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be a positive integer, got %d", e.Quantity)
}

// InsufficientStockError indicates the requested quantity exceeds the
// product's available stock at order time.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
