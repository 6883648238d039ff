package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/order"
)

const (
	orderColumns = `id, order_number, user_id, items, shipping_address, billing_address,
		payment_method, payment_status, transaction_id, checkout_request_id, paid_at,
		items_price, tax_price, shipping_price, discount_amount, total_price, coupon_code,
		status, status_history, delivery, shipped_at, delivered_at, version, created_at, updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE id = $1 AND deleted_at IS NULL`

	getOrderByCheckoutSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE checkout_request_id = $1 AND deleted_at IS NULL`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	countOrdersByUserSQL = `SELECT count(*) FROM orders WHERE user_id = $1 AND deleted_at IS NULL`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE ($1 = '' OR status = $1) AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	countOrdersSQL = `SELECT count(*) FROM orders WHERE ($1 = '' OR status = $1) AND deleted_at IS NULL`

	insertOrderSQL = `INSERT INTO orders (id, order_number, user_id, items, shipping_address, billing_address,
			payment_method, payment_status, transaction_id, checkout_request_id, paid_at,
			items_price, tax_price, shipping_price, discount_amount, total_price, coupon_code,
			status, status_history, delivery, shipped_at, delivered_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	updateOrderSQL = `UPDATE orders
		SET payment_method = $2, payment_status = $3, transaction_id = $4, checkout_request_id = $5,
		    paid_at = $6, status = $7, status_history = $8, delivery = $9,
		    shipped_at = $10, delivered_at = $11, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $12 AND deleted_at IS NULL
		RETURNING version`

	softDeleteOrderSQL = `UPDATE orders SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// immutable snapshot parts (items, addresses, history, delivery) are
// JSONB; the queried and mutated fields are real columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	enc, err := encodeOrderDocs(o)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.OrderNumber, o.UserID, enc.items, enc.shipping, enc.billing,
		o.Payment.Method, o.Payment.Status, o.Payment.TransactionID, o.Payment.CheckoutRequestID, o.Payment.PaidAt,
		o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.DiscountAmount, o.TotalPrice, o.CouponCode,
		o.Status, enc.history, enc.delivery, o.ShippedAt, o.DeliveredAt, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order, excluding soft-deleted rows.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByCheckoutRequestID resolves the order a payment callback belongs to.
func (r *OrderRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByCheckoutSQL, checkoutRequestID)
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countOrdersByUserSQL, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders for %q: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	return orders, total, nil
}

// List returns orders across users, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, status order.Status, limit, offset int) ([]order.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countOrdersSQL, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	rows, err := r.pool.Query(ctx, listOrdersSQL, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return orders, total, nil
}

// Update saves the mutable parts of the order under its version check and
// advances the version in place.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	enc, err := encodeOrderDocs(o)
	if err != nil {
		return err
	}

	var version int
	err = r.pool.QueryRow(ctx, updateOrderSQL,
		o.ID, o.Payment.Method, o.Payment.Status, o.Payment.TransactionID, o.Payment.CheckoutRequestID,
		o.Payment.PaidAt, o.Status, enc.history, enc.delivery,
		o.ShippedAt, o.DeliveredAt, o.Version,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrVersionConflict
		}
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	o.Version = version
	return nil
}

// SoftDelete hides the order from all queries; the row remains for audit.
func (r *OrderRepository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, softDeleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) getOne(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return &o, nil
}

type orderDocs struct {
	items    []byte
	shipping []byte
	billing  []byte
	history  []byte
	delivery []byte
}

func encodeOrderDocs(o *order.Order) (orderDocs, error) {
	var (
		d   orderDocs
		err error
	)
	if d.items, err = json.Marshal(o.Items); err != nil {
		return d, fmt.Errorf("encoding order items: %w", err)
	}
	if d.shipping, err = json.Marshal(o.ShippingAddress); err != nil {
		return d, fmt.Errorf("encoding shipping address: %w", err)
	}
	if d.billing, err = json.Marshal(o.BillingAddress); err != nil {
		return d, fmt.Errorf("encoding billing address: %w", err)
	}
	if d.history, err = json.Marshal(o.History); err != nil {
		return d, fmt.Errorf("encoding status history: %w", err)
	}
	if o.Delivery != nil {
		if d.delivery, err = json.Marshal(o.Delivery); err != nil {
			return d, fmt.Errorf("encoding delivery info: %w", err)
		}
	}
	return d, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                                 order.Order
		items, shipping, billing, history []byte
		delivery                          []byte
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &items, &shipping, &billing,
		&o.Payment.Method, &o.Payment.Status, &o.Payment.TransactionID, &o.Payment.CheckoutRequestID, &o.Payment.PaidAt,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.DiscountAmount, &o.TotalPrice, &o.CouponCode,
		&o.Status, &history, &delivery, &o.ShippedAt, &o.DeliveredAt, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("decoding order items: %w", err)
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("decoding shipping address: %w", err)
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return o, fmt.Errorf("decoding billing address: %w", err)
	}
	if err := json.Unmarshal(history, &o.History); err != nil {
		return o, fmt.Errorf("decoding status history: %w", err)
	}
	if len(delivery) > 0 {
		o.Delivery = &order.DeliveryInfo{}
		if err := json.Unmarshal(delivery, o.Delivery); err != nil {
			return o, fmt.Errorf("decoding delivery info: %w", err)
		}
	}
	return o, nil
}
