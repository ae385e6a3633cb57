package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrNegativeStock is returned by catalog mutations that would leave a
// product with a negative available quantity.
var ErrNegativeStock = errors.New("product quantity cannot be negative")

// Product represents a catalog item available for purchase. Quantity is the
// currently available stock and is never negative. Cart and order operations
// read Price and Quantity but never mutate them; only catalog management
// writes go through Writer.
type Product struct {
	ID          string
	Code        string
	Name        string
	Brand       string
	Price       decimal.Decimal
	Quantity    int
	Category    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the catalog invariants enforced on every mutation.
func (p *Product) Validate() error {
	if p.Quantity < 0 {
		return ErrNegativeStock
	}
	return nil
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByCode(ctx context.Context, code string) (*Product, error)
}

// Writer defines catalog management operations. These sit outside the
// cart/order core; the seed and import tools are their only callers here.
type Writer interface {
	Upsert(ctx context.Context, p *Product) error
	UpdateStock(ctx context.Context, id string, quantity int) error
}
