package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service exposes the credit and debit operations on user wallets.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a wallet Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns the user's wallet, creating it lazily.
func (s *Service) Get(ctx context.Context, userID string) (*Wallet, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// Credit adds funds to the user's wallet, creating it if absent.
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, source Source, description, reference string) (*Wallet, error) {
	return s.apply(ctx, userID, TypeCredit, amount, source, description, reference)
}

// Debit removes funds from the user's wallet. A debit exceeding the
// balance is rejected with ErrInsufficientBalance.
func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal, source Source, description, reference string) (*Wallet, error) {
	return s.apply(ctx, userID, TypeDebit, amount, source, description, reference)
}

// ListTransactions returns the user's ledger, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, int, error) {
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}

func (s *Service) apply(ctx context.Context, userID string, typ TransactionType, amount decimal.Decimal, source Source, description, reference string) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	w, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load wallet")
	}

	if typ == TypeDebit && w.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	return s.repo.Apply(ctx, Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        typ,
		Amount:      amount.Round(2),
		Description: description,
		Reference:   reference,
		Source:      source,
		CreatedAt:   s.now(),
	}, w.Version)
}
