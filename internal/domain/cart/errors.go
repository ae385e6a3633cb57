package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors shared by cart operations.
var (
	// ErrNotFound is returned when a cart does not exist.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when a cart item does not exist.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrForbidden is returned when a caller mutates a cart they do not own
	// without elevated privileges.
	ErrForbidden = errors.New("cart does not belong to caller")
	// ErrConflict is returned when a concurrent same-key write kept winning
	// for the whole retry budget.
	ErrConflict = errors.New("concurrent cart modification")
)

// InvalidQuantityError indicates a non-positive requested quantity.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be a positive integer, got %d", e.Quantity)
}

// InsufficientStockError indicates the resulting line quantity would exceed
// the product's currently available stock.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
