package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
)

const (
	couponColumns = `code, kind, value, min_amount, max_discount, usage_limit, usage_count,
		user_limit, starts_at, ends_at, active, allowed_users, excluded_users, description, version`

	findCouponSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = upper($1)`

	listCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	countCouponsSQL = `SELECT count(*) FROM coupons`

	insertCouponSQL = `INSERT INTO coupons (code, kind, value, min_amount, max_discount, usage_limit,
			user_limit, starts_at, ends_at, active, allowed_users, excluded_users, description)
		VALUES (upper($1), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	updateCouponSQL = `UPDATE coupons
		SET kind = $2, value = $3, min_amount = $4, max_discount = $5, usage_limit = $6,
		    user_limit = $7, starts_at = $8, ends_at = $9, active = $10,
		    allowed_users = $11, excluded_users = $12, description = $13,
		    version = version + 1
		WHERE code = upper($1) AND version = $14`

	upsertCouponSQL = `INSERT INTO coupons (code, kind, value, min_amount, max_discount, usage_limit,
			user_limit, starts_at, ends_at, active, allowed_users, excluded_users, description)
		VALUES (upper($1), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (code) DO UPDATE
		SET kind = EXCLUDED.kind, value = EXCLUDED.value, min_amount = EXCLUDED.min_amount,
		    max_discount = EXCLUDED.max_discount, usage_limit = EXCLUDED.usage_limit,
		    user_limit = EXCLUDED.user_limit, starts_at = EXCLUDED.starts_at,
		    ends_at = EXCLUDED.ends_at, active = EXCLUDED.active,
		    allowed_users = EXCLUDED.allowed_users, excluded_users = EXCLUDED.excluded_users,
		    description = EXCLUDED.description, version = coupons.version + 1`

	deactivateCouponSQL = `UPDATE coupons SET active = FALSE, version = version + 1 WHERE code = upper($1)`

	countUserUsageSQL = `SELECT count(*) FROM coupon_usages WHERE coupon_code = $1 AND user_id = $2`

	insertUsageSQL = `INSERT INTO coupon_usages (coupon_code, user_id, order_amount, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, $5)`

	bumpUsageCountSQL = `UPDATE coupons
		SET usage_count = usage_count + 1, version = version + 1
		WHERE code = $1 AND version = $2`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Codes are stored uppercase; lookups normalize through upper() so the
// match is case-insensitive either way.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon regardless of its active flag.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

// List returns coupons for the admin view, newest first.
func (r *CouponRepository) List(ctx context.Context, limit, offset int) ([]coupon.Coupon, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countCouponsSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting coupons: %w", err)
	}

	rows, err := r.pool.Query(ctx, listCouponsSQL, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}
	return coupons, total, nil
}

// Create inserts a new coupon.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	allowed, excluded, err := encodeUserLists(c)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, insertCouponSQL,
		c.Code, c.Kind, c.Value, c.MinAmount, c.MaxDiscount, c.UsageLimit,
		c.UserLimit, c.StartsAt, c.EndsAt, c.Active, allowed, excluded, c.Description,
	)
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts or replaces a coupon by code. Used by the seed and bulk
// ingest tools; usage counters are preserved on replace.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	allowed, excluded, err := encodeUserLists(c)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, upsertCouponSQL,
		c.Code, c.Kind, c.Value, c.MinAmount, c.MaxDiscount, c.UsageLimit,
		c.UserLimit, c.StartsAt, c.EndsAt, c.Active, allowed, excluded, c.Description,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update saves coupon fields under the version check.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	allowed, excluded, err := encodeUserLists(c)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.Code, c.Kind, c.Value, c.MinAmount, c.MaxDiscount, c.UsageLimit,
		c.UserLimit, c.StartsAt, c.EndsAt, c.Active, allowed, excluded, c.Description,
		c.Version,
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrVersionConflict
	}
	return nil
}

// Deactivate clears the active flag; the coupon and its ledger stay.
func (r *CouponRepository) Deactivate(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deactivateCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deactivating coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// CountUserUsage returns how many times the user redeemed the coupon.
func (r *CouponRepository) CountUserUsage(ctx context.Context, code, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countUserUsageSQL, code, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting usage of %q: %w", code, err)
	}
	return n, nil
}

// AppendUsage appends the ledger entry and bumps the global counter in
// one transaction, guarded by the coupon version.
func (r *CouponRepository) AppendUsage(ctx context.Context, u coupon.Usage, expectedVersion int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning usage tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, bumpUsageCountSQL, u.CouponCode, expectedVersion)
	if err != nil {
		return fmt.Errorf("bumping usage count of %q: %w", u.CouponCode, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrVersionConflict
	}

	_, err = tx.Exec(ctx, insertUsageSQL,
		u.CouponCode, u.UserID, u.OrderAmount, u.DiscountAmount, u.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("recording usage of %q: %w", u.CouponCode, err)
	}
	return tx.Commit(ctx)
}

func encodeUserLists(c *coupon.Coupon) (allowed, excluded []byte, err error) {
	if allowed, err = json.Marshal(emptyIfNil(c.AllowedUsers)); err != nil {
		return nil, nil, fmt.Errorf("encoding allowed users: %w", err)
	}
	if excluded, err = json.Marshal(emptyIfNil(c.ExcludedUsers)); err != nil {
		return nil, nil, fmt.Errorf("encoding excluded users: %w", err)
	}
	return allowed, excluded, nil
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c                 coupon.Coupon
		allowed, excluded []byte
	)
	err := row.Scan(
		&c.Code, &c.Kind, &c.Value, &c.MinAmount, &c.MaxDiscount, &c.UsageLimit,
		&c.UsageCount, &c.UserLimit, &c.StartsAt, &c.EndsAt, &c.Active,
		&allowed, &excluded, &c.Description, &c.Version,
	)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(allowed, &c.AllowedUsers); err != nil {
		return c, fmt.Errorf("decoding allowed users: %w", err)
	}
	if err := json.Unmarshal(excluded, &c.ExcludedUsers); err != nil {
		return c, fmt.Errorf("decoding excluded users: %w", err)
	}
	return c, nil
}
