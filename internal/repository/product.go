package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, image, category, stock_quantity, total_sales, active`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE active ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	countProductsSQL = `SELECT count(*) FROM products WHERE active`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1 AND active`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = ANY($1) AND active`

	insertProductSQL = `INSERT INTO products (id, name, description, price, image, category, stock_quantity, total_sales, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, image, category, stock_quantity, total_sales, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
		    image = EXCLUDED.image, category = EXCLUDED.category,
		    stock_quantity = EXCLUDED.stock_quantity, active = EXCLUDED.active,
		    updated_at = now()`

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, price = $4, image = $5, category = $6,
		    stock_quantity = $7, active = $8, updated_at = now()
		WHERE id = $1`

	deactivateProductSQL = `UPDATE products SET active = FALSE, updated_at = now() WHERE id = $1`

	// The stock check lives in the WHERE clause so a concurrent decrement
	// can never take the quantity below zero.
	adjustStockSQL = `UPDATE products
		SET stock_quantity = stock_quantity + $2,
		    total_sales = total_sales + $3,
		    updated_at = now()
		WHERE id = $1 AND stock_quantity + $2 >= 0
		RETURNING stock_quantity - $2`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns active products, newest first.
func (r *ProductRepository) List(ctx context.Context, limit, offset int) ([]product.Product, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countProductsSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	rows, err := r.pool.Query(ctx, listProductsSQL, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	return products, total, nil
}

// GetByID returns a single active product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns active products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Category,
		p.StockQuantity, p.TotalSales, p.Active,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts or replaces a product by id. Used by the seed tool;
// total_sales is preserved on replace.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Category,
		p.StockQuantity, p.TotalSales, p.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// Update saves product fields. Stock mutation from order flows goes
// through AdjustStock instead.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Category,
		p.StockQuantity, p.Active,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Deactivate hides a product from the catalog without deleting it.
func (r *ProductRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deactivateProductSQL, id)
	if err != nil {
		return fmt.Errorf("deactivating product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// AdjustStock applies stockDelta and salesDelta in one statement.
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, stockDelta, salesDelta int) error {
	var before int
	err := r.pool.QueryRow(ctx, adjustStockSQL, id, stockDelta, salesDelta).Scan(&before)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.stockError(ctx, id, stockDelta)
		}
		return fmt.Errorf("adjusting stock for %q: %w", id, err)
	}
	return nil
}

// stockError distinguishes a missing product from insufficient stock
// after the guarded update matched no row.
func (r *ProductRepository) stockError(ctx context.Context, id string, stockDelta int) error {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return &product.InsufficientStockError{
		ProductID: id,
		Requested: -stockDelta,
		Available: p.StockQuantity,
	}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.Category,
		&p.StockQuantity, &p.TotalSales, &p.Active,
	)
	return p, err
}
