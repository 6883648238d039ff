// Package payment reconciles orders with payments: STK push initiation,
// asynchronous gateway callbacks, wallet payments and refunds.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrIntentNotFound is returned for callbacks whose CheckoutRequestID
	// matches no stored intent.
	ErrIntentNotFound = errors.New("payment intent not found")
	// ErrAlreadyProcessed is returned when a callback for this intent was
	// already handled. Duplicate callbacks are treated as no-ops.
	ErrAlreadyProcessed = errors.New("payment intent already processed")
	// ErrAlreadyPaid is returned when a payment is attempted on an order
	// that has already been paid.
	ErrAlreadyPaid = errors.New("order is already paid")
	// ErrNotPaid is returned when a refund is requested for an order whose
	// payment never completed.
	ErrNotPaid = errors.New("order payment is not completed")
	// ErrNotOwner is returned when a user attempts to pay an order that is
	// not theirs.
	ErrNotOwner = errors.New("order belongs to another user")
)

// Status of a payment intent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Intent records one STK push awaiting its callback. It is keyed by the
// gateway's CheckoutRequestID, the only correlation id the callback
// carries.
type Intent struct {
	CheckoutRequestID string          `json:"checkout_request_id"`
	MerchantRequestID string          `json:"merchant_request_id"`
	OrderID           string          `json:"order_id"`
	UserID            string          `json:"user_id"`
	Phone             string          `json:"phone"`
	Amount            decimal.Decimal `json:"amount"`
	Status            Status          `json:"status"`
	ResultCode        int             `json:"result_code,omitempty"`
	ResultDesc        string          `json:"result_desc,omitempty"`
	Receipt           string          `json:"receipt,omitempty"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Result carries the callback outcome recorded onto an intent.
type Result struct {
	Status     Status
	ResultCode int
	ResultDesc string
	Receipt    string
}

// IntentRepository persists payment intents.
type IntentRepository interface {
	Create(ctx context.Context, in *Intent) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Intent, error)

	// MarkProcessed records the callback result and stamps ProcessedAt,
	// but only if the intent has not been processed yet. It returns
	// ErrAlreadyProcessed otherwise, which makes it the idempotency claim
	// for callback handling.
	MarkProcessed(ctx context.Context, checkoutRequestID string, res Result) (*Intent, error)
}
