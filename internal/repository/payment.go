package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/payment"
)

const (
	intentColumns = `checkout_request_id, merchant_request_id, order_id, user_id, phone, amount,
		status, receipt, coalesce(result_code, 0), result_desc, processed_at, created_at`

	getIntentSQL = `SELECT ` + intentColumns + `
		FROM payment_intents WHERE checkout_request_id = $1`

	insertIntentSQL = `INSERT INTO payment_intents (checkout_request_id, merchant_request_id, order_id, user_id, phone, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	// processed_at IS NULL makes this the idempotency claim: a second
	// callback for the same intent matches no row.
	markProcessedSQL = `UPDATE payment_intents
		SET status = $2, receipt = $3, result_code = $4, result_desc = $5, processed_at = now()
		WHERE checkout_request_id = $1 AND processed_at IS NULL
		RETURNING ` + intentColumns
)

var _ payment.IntentRepository = (*PaymentIntentRepository)(nil)

// PaymentIntentRepository implements payment.IntentRepository backed by
// PostgreSQL.
type PaymentIntentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentIntentRepository returns a PaymentIntentRepository that uses
// the given pool.
func NewPaymentIntentRepository(pool *pgxpool.Pool) *PaymentIntentRepository {
	return &PaymentIntentRepository{pool: pool}
}

// Create stores a pending intent.
func (r *PaymentIntentRepository) Create(ctx context.Context, in *payment.Intent) error {
	_, err := r.pool.Exec(ctx, insertIntentSQL,
		in.CheckoutRequestID, in.MerchantRequestID, in.OrderID, in.UserID,
		in.Phone, in.Amount, in.Status, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating payment intent %q: %w", in.CheckoutRequestID, err)
	}
	return nil
}

// GetByCheckoutRequestID returns the intent for a correlation id.
func (r *PaymentIntentRepository) GetByCheckoutRequestID(ctx context.Context, id string) (*payment.Intent, error) {
	rows, err := r.pool.Query(ctx, getIntentSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting payment intent %q: %w", id, err)
	}

	in, err := pgx.CollectExactlyOneRow(rows, scanIntent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrIntentNotFound
		}
		return nil, fmt.Errorf("getting payment intent %q: %w", id, err)
	}
	return &in, nil
}

// MarkProcessed records the callback outcome once; later calls for the
// same id report ErrAlreadyProcessed.
func (r *PaymentIntentRepository) MarkProcessed(ctx context.Context, id string, res payment.Result) (*payment.Intent, error) {
	rows, err := r.pool.Query(ctx, markProcessedSQL,
		id, res.Status, res.Receipt, res.ResultCode, res.ResultDesc,
	)
	if err != nil {
		return nil, fmt.Errorf("marking payment intent %q: %w", id, err)
	}

	in, err := pgx.CollectExactlyOneRow(rows, scanIntent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByCheckoutRequestID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, payment.ErrAlreadyProcessed
		}
		return nil, fmt.Errorf("marking payment intent %q: %w", id, err)
	}
	return &in, nil
}

func scanIntent(row pgx.CollectableRow) (payment.Intent, error) {
	var in payment.Intent
	err := row.Scan(
		&in.CheckoutRequestID, &in.MerchantRequestID, &in.OrderID, &in.UserID,
		&in.Phone, &in.Amount, &in.Status, &in.Receipt, &in.ResultCode,
		&in.ResultDesc, &in.ProcessedAt, &in.CreatedAt,
	)
	return in, err
}
