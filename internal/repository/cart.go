package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/cart"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
)

const (
	getCartSQL = `SELECT user_id, items, coupon_code, coupon_kind, coupon_value, coupon_max_disc,
			total_items, total_price, discount_amount, final_price, version, updated_at
		FROM carts WHERE user_id = $1`

	insertCartSQL = `INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`

	saveCartSQL = `UPDATE carts
		SET items = $2, coupon_code = $3, coupon_kind = $4, coupon_value = $5, coupon_max_disc = $6,
		    total_items = $7, total_price = $8, discount_amount = $9, final_price = $10,
		    version = version + 1, updated_at = now()
		WHERE user_id = $1 AND version = $11
		RETURNING version`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. One row
// per user; line items live in a JSONB column since they are only ever
// read and written as a whole.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetOrCreate returns the user's cart, inserting an empty row on first
// access.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID string) (*cart.Cart, error) {
	if _, err := r.pool.Exec(ctx, insertCartSQL, userID); err != nil {
		return nil, fmt.Errorf("creating cart for %q: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, getCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}
	return c, nil
}

// Save persists the cart under its version check and advances the version
// in place.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("encoding cart items: %w", err)
	}

	var code, kind string
	value, maxDisc := decimal.Zero, decimal.Zero
	if c.Coupon != nil {
		code = c.Coupon.Code
		kind = string(c.Coupon.Kind)
		value = c.Coupon.Value
		maxDisc = c.Coupon.MaxDiscount
	}

	var version int
	err = r.pool.QueryRow(ctx, saveCartSQL,
		c.UserID, items, code, kind, value, maxDisc,
		c.TotalItems, c.TotalPrice, c.DiscountAmount, c.FinalPrice,
		c.Version,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.ErrVersionConflict
		}
		return fmt.Errorf("saving cart for %q: %w", c.UserID, err)
	}
	c.Version = version
	return nil
}

func scanCart(row pgx.CollectableRow) (*cart.Cart, error) {
	var (
		c          cart.Cart
		items      []byte
		code, kind string
	)
	applied := cart.AppliedCoupon{}
	err := row.Scan(
		&c.UserID, &items, &code, &kind, &applied.Value, &applied.MaxDiscount,
		&c.TotalItems, &c.TotalPrice, &c.DiscountAmount, &c.FinalPrice,
		&c.Version, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("decoding cart items: %w", err)
	}
	if code != "" {
		applied.Code = code
		applied.Kind = coupon.Kind(kind)
		c.Coupon = &applied
	}
	return &c, nil
}
