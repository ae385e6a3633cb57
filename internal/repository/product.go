package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-api/internal/domain/product"
)

const (
	productColumns = `id, code, name, brand, price, quantity, category, description, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductByCodeSQL = `SELECT ` + productColumns + ` FROM products WHERE code = $1`

	upsertProductSQL = `INSERT INTO products (id, code, name, brand, price, quantity, category, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			price = EXCLUDED.price,
			quantity = EXCLUDED.quantity,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			updated_at = now()`

	updateStockSQL = `UPDATE products SET quantity = $2, updated_at = now() WHERE id = $1`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Writer     = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository and product.Writer backed
// by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products, most recently created first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

// GetByCode returns a single product by its unique code.
func (r *ProductRepository) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	return r.getOne(ctx, getProductByCodeSQL, code)
}

func (r *ProductRepository) getOne(ctx context.Context, sql, arg string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", arg)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", arg)
	}
	return &p, nil
}

// Upsert inserts or replaces a product keyed by its unique code. The
// non-negative stock invariant is validated before the write; the CHECK
// constraint on the column is the store-level backstop.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Code, p.Name, p.Brand, p.Price, p.Quantity, p.Category, p.Description,
	)
	if err != nil {
		return errors.Wrapf(err, "upserting product %q", p.Code)
	}
	return nil
}

// UpdateStock sets a product's available quantity.
func (r *ProductRepository) UpdateStock(ctx context.Context, id string, quantity int) error {
	if quantity < 0 {
		return product.ErrNegativeStock
	}

	tag, err := r.pool.Exec(ctx, updateStockSQL, id, quantity)
	if err != nil {
		return errors.Wrapf(err, "updating stock for product %q", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Brand, &p.Price, &p.Quantity,
		&p.Category, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
