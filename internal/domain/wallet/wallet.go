package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientBalance is returned when a debit would take the
	// balance below zero. The wallet is left unchanged.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrVersionConflict is returned when a concurrent mutation bumped the
	// wallet version between read and write.
	ErrVersionConflict = errors.New("wallet was modified concurrently")
)

// TransactionType marks a ledger entry as a credit or a debit.
type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

// Source identifies where a ledger entry originated.
type Source string

const (
	SourceMpesa        Source = "mpesa"
	SourceRefund       Source = "refund"
	SourceCashback     Source = "cashback"
	SourceAdminCredit  Source = "admin_credit"
	SourceOrderPayment Source = "order_payment"
	SourceWithdrawal   Source = "withdrawal"
)

// Transaction is one entry of the wallet's append-only ledger.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Source      Source          `json:"source"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Wallet holds a user's credit balance. The balance always equals the
// signed sum of the transaction ledger; it only changes through
// Repository.Apply, which appends the entry and adjusts the balance in a
// single atomic operation.
type Wallet struct {
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Repository provides wallet persistence.
type Repository interface {
	// GetOrCreate returns the user's wallet, creating a zero-balance one
	// on first access.
	GetOrCreate(ctx context.Context, userID string) (*Wallet, error)

	// Apply atomically appends the transaction and adjusts the balance in
	// one database transaction, guarded by the wallet version. A debit
	// that would make the balance negative fails with
	// ErrInsufficientBalance and leaves the wallet unchanged.
	Apply(ctx context.Context, tx Transaction, expectedVersion int) (*Wallet, error)

	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, int, error)
}
