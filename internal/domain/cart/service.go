package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront-api/internal/domain/auth"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/pkg/keymutex"
)

// conflictRetries bounds how many times a lost insert race is retried before
// ErrConflict surfaces to the caller.
const conflictRetries = 3

// Service owns per-user cart state: it merges repeated adds into one line
// item per (cart, product), snapshots the unit price on first insertion, and
// validates quantities against current catalog stock before every write.
//
// Stock is an advisory ceiling. Adding to a cart or updating a line never
// decrements product quantity; two concurrent carts can both pass validation
// against the same unit of stock.
type Service struct {
	products product.Repository
	carts    Repository
	locks    *keymutex.Table
}

// NewService creates a cart Service with the required dependencies.
func NewService(products product.Repository, carts Repository) *Service {
	return &Service{
		products: products,
		carts:    carts,
		locks:    keymutex.New(),
	}
}

// AddItem adds quantity units of the product to the caller's cart. If the
// cart already holds a line for the product the quantities merge; otherwise a
// new line is created with the product's current price as its snapshot. The
// resulting quantity is validated against available stock in both paths.
func (s *Service) AddItem(ctx context.Context, identity auth.Identity, productID string, quantity int) (*Item, error) {
	if identity.Anonymous() {
		return nil, ErrForbidden
	}
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	c, err := s.getOrCreate(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}

	// Serialize the find-or-create of the (cart, product) line so concurrent
	// adds observe each other's writes. The repository's unique constraint on
	// the pair backs this up across processes.
	unlock := s.locks.Lock(c.ID + "\x00" + productID)
	defer unlock()

	for range conflictRetries {
		item, err := s.carts.FindItem(ctx, c.ID, productID)
		switch {
		case err == nil:
			merged := item.Quantity + quantity
			if merged > p.Quantity {
				return nil, &InsufficientStockError{
					ProductID: productID,
					Requested: merged,
					Available: p.Quantity,
				}
			}
			if err := s.carts.UpdateItemQuantity(ctx, item.ID, merged); err != nil {
				return nil, errors.Wrap(err, "update cart item quantity")
			}
			item.Quantity = merged
			return item, nil

		case errors.Is(err, ErrItemNotFound):
			if quantity > p.Quantity {
				return nil, &InsufficientStockError{
					ProductID: productID,
					Requested: quantity,
					Available: p.Quantity,
				}
			}
			item := &Item{
				ID:        uuid.New().String(),
				CartID:    c.ID,
				ProductID: productID,
				Quantity:  quantity,
				UnitPrice: p.Price,
			}
			err := s.carts.InsertItem(ctx, item)
			if errors.Is(err, ErrConflict) {
				// Another writer created the line first; re-read and merge.
				continue
			}
			if err != nil {
				return nil, errors.Wrap(err, "insert cart item")
			}
			return item, nil

		default:
			return nil, errors.Wrap(err, "find cart item")
		}
	}

	return nil, ErrConflict
}

// UpdateItemQuantity replaces a cart line's quantity. The new quantity is
// revalidated against current stock; the price snapshot is untouched. Callers
// may only modify their own cart unless the identity is elevated.
func (s *Service) UpdateItemQuantity(ctx context.Context, identity auth.Identity, itemID string, quantity int) (*Item, error) {
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	item, err := s.ownedItem(ctx, identity, itemID)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > p.Quantity {
		return nil, &InsufficientStockError{
			ProductID: item.ProductID,
			Requested: quantity,
			Available: p.Quantity,
		}
	}

	unlock := s.locks.Lock(item.CartID + "\x00" + item.ProductID)
	defer unlock()

	if err := s.carts.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, errors.Wrap(err, "update cart item quantity")
	}
	item.Quantity = quantity
	return item, nil
}

// RemoveItem hard-deletes a cart line after the ownership check.
func (s *Service) RemoveItem(ctx context.Context, identity auth.Identity, itemID string) error {
	item, err := s.ownedItem(ctx, identity, itemID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(item.CartID + "\x00" + item.ProductID)
	defer unlock()

	if err := s.carts.DeleteItem(ctx, item.ID); err != nil {
		return errors.Wrap(err, "delete cart item")
	}
	return nil
}

// GetCart returns the caller's cart with its items loaded. The cart is
// created on first access.
func (s *Service) GetCart(ctx context.Context, identity auth.Identity) (*Cart, error) {
	if identity.Anonymous() {
		return nil, ErrForbidden
	}

	c, err := s.getOrCreate(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}

	items, err := s.carts.ListItems(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	c.Items = items
	return c, nil
}

// getOrCreate resolves the user's cart, creating it when absent. The
// check-then-act runs under a per-user lock; the unique constraint on user_id
// catches races with other processes, which are resolved by re-reading.
func (s *Service) getOrCreate(ctx context.Context, userID string) (*Cart, error) {
	unlock := s.locks.Lock("user\x00" + userID)
	defer unlock()

	for range conflictRetries {
		c, err := s.carts.GetByUser(ctx, userID)
		switch {
		case err == nil:
			return c, nil
		case errors.Is(err, ErrNotFound):
			c := &Cart{
				ID:     uuid.New().String(),
				UserID: userID,
			}
			err := s.carts.Create(ctx, c)
			if errors.Is(err, ErrConflict) {
				continue
			}
			if err != nil {
				return nil, errors.Wrap(err, "create cart")
			}
			return c, nil
		default:
			return nil, errors.Wrap(err, "get cart by user")
		}
	}

	return nil, ErrConflict
}

// ownedItem loads a cart item and verifies the caller owns its cart, or holds
// elevated privileges.
func (s *Service) ownedItem(ctx context.Context, identity auth.Identity, itemID string) (*Item, error) {
	if identity.Anonymous() {
		return nil, ErrForbidden
	}

	item, err := s.carts.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	c, err := s.carts.Get(ctx, item.CartID)
	if err != nil {
		return nil, err
	}
	if c.UserID != identity.UserID && !identity.Elevated {
		return nil, ErrForbidden
	}
	return item, nil
}
