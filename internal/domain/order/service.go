package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/product"
)

// Service converts a (product, quantity) request into an immutable order.
//
// Stock sufficiency is checked before persistence but the product quantity is
// not decremented: like cart membership, an order is not a reservation.
type Service struct {
	products product.Repository
	orders   Repository
}

// NewService creates an order Service with the required dependencies.
func NewService(products product.Repository, orders Repository) *Service {
	return &Service{
		products: products,
		orders:   orders,
	}
}

// PlaceOrder validates the request, computes the total from the product price
// read in this operation, and persists the order. The price is read exactly
// once, so a concurrent catalog price change cannot tear the total.
func (s *Service) PlaceOrder(ctx context.Context, productID string, quantity int) (*Order, error) {
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if quantity > p.Quantity {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: p.Quantity,
		}
	}

	o := &Order{
		ID:        uuid.New().String(),
		ProductID: productID,
		Quantity:  quantity,
		Total:     p.Price.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// ListOrders returns all orders, most recent first.
func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}
