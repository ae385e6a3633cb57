package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-api/internal/domain/cart"
)

const (
	getCartByUserSQL = `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`

	getCartSQL = `SELECT id, user_id, created_at, updated_at FROM carts WHERE id = $1`

	createCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)`

	itemColumns = `id, cart_id, product_id, quantity, unit_price, created_at, updated_at`

	listItemsSQL = `SELECT ` + itemColumns + ` FROM cart_items WHERE cart_id = $1 ORDER BY created_at`

	findItemSQL = `SELECT ` + itemColumns + ` FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	getItemSQL = `SELECT ` + itemColumns + ` FROM cart_items WHERE id = $1`

	insertItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`

	// Quantity only: unit_price is the write-once snapshot and is excluded
	// from the write set of every update.
	updateItemQuantitySQL = `UPDATE cart_items SET quantity = $2, updated_at = now() WHERE id = $1`

	deleteItemSQL = `DELETE FROM cart_items WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. The unique
// constraints on carts.user_id and cart_items(cart_id, product_id) enforce
// merge-not-duplicate at the store level; lost insert races surface as
// cart.ErrConflict for the service to retry.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetByUser returns the user's cart, or cart.ErrNotFound.
func (r *CartRepository) GetByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.getCart(ctx, getCartByUserSQL, userID)
}

// Get returns a cart by its identifier, or cart.ErrNotFound.
func (r *CartRepository) Get(ctx context.Context, cartID string) (*cart.Cart, error) {
	return r.getCart(ctx, getCartSQL, cartID)
}

func (r *CartRepository) getCart(ctx context.Context, sql, arg string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrapf(err, "getting cart %q", arg)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting cart %q", arg)
	}
	return &c, nil
}

// Create inserts a new cart. A concurrent create for the same user trips the
// unique constraint and returns cart.ErrConflict.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	_, err := r.pool.Exec(ctx, createCartSQL, c.ID, c.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return cart.ErrConflict
		}
		return errors.Wrapf(err, "creating cart for user %q", c.UserID)
	}
	return nil
}

// ListItems returns all items in the cart in insertion order.
func (r *CartRepository) ListItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL, cartID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing items for cart %q", cartID)
	}
	return pgx.CollectRows(rows, scanItem)
}

// FindItem returns the item for the (cart, product) natural key, or
// cart.ErrItemNotFound.
func (r *CartRepository) FindItem(ctx context.Context, cartID, productID string) (*cart.Item, error) {
	rows, err := r.pool.Query(ctx, findItemSQL, cartID, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "finding item for cart %q product %q", cartID, productID)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, errors.Wrapf(err, "finding item for cart %q product %q", cartID, productID)
	}
	return &item, nil
}

// GetItem returns a cart item by its identifier, or cart.ErrItemNotFound.
func (r *CartRepository) GetItem(ctx context.Context, itemID string) (*cart.Item, error) {
	rows, err := r.pool.Query(ctx, getItemSQL, itemID)
	if err != nil {
		return nil, errors.Wrapf(err, "getting item %q", itemID)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, errors.Wrapf(err, "getting item %q", itemID)
	}
	return &item, nil
}

// InsertItem persists a new cart line. A concurrent insert for the same
// (cart, product) pair trips the unique constraint and returns
// cart.ErrConflict.
func (r *CartRepository) InsertItem(ctx context.Context, item *cart.Item) error {
	_, err := r.pool.Exec(ctx, insertItemSQL,
		item.ID, item.CartID, item.ProductID, item.Quantity, item.UnitPrice,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return cart.ErrConflict
		}
		return errors.Wrapf(err, "inserting item for cart %q", item.CartID)
	}
	return nil
}

// UpdateItemQuantity persists a quantity change for an existing line.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, updateItemQuantitySQL, itemID, quantity)
	if err != nil {
		return errors.Wrapf(err, "updating quantity for item %q", itemID)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// DeleteItem removes a cart line.
func (r *CartRepository) DeleteItem(ctx context.Context, itemID string) error {
	tag, err := r.pool.Exec(ctx, deleteItemSQL, itemID)
	if err != nil {
		return errors.Wrapf(err, "deleting item %q", itemID)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanItem(row pgx.CollectableRow) (cart.Item, error) {
	var item cart.Item
	err := row.Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
		&item.UnitPrice, &item.CreatedAt, &item.UpdatedAt,
	)
	return item, err
}
