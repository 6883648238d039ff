package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/wallet"
)

const (
	getWalletSQL = `SELECT user_id, balance, version, created_at, updated_at
		FROM wallets WHERE user_id = $1`

	insertWalletSQL = `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`

	// The balance guard sits in the WHERE clause alongside the version so
	// an overdraft and a concurrent write both surface as zero rows.
	applyWalletSQL = `UPDATE wallets
		SET balance = balance + $2, version = version + 1, updated_at = now()
		WHERE user_id = $1 AND version = $3 AND balance + $2 >= 0
		RETURNING user_id, balance, version, created_at, updated_at`

	insertWalletTxSQL = `INSERT INTO wallet_transactions (id, user_id, type, amount, description, reference, source, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listWalletTxSQL = `SELECT id, user_id, type, amount, description, reference, source, metadata, created_at
		FROM wallet_transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	countWalletTxSQL = `SELECT count(*) FROM wallet_transactions WHERE user_id = $1`
)

var _ wallet.Repository = (*WalletRepository)(nil)

// WalletRepository implements wallet.Repository backed by PostgreSQL.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository returns a WalletRepository that uses the given pool.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// GetOrCreate returns the user's wallet, inserting a zero-balance row on
// first access.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID string) (*wallet.Wallet, error) {
	if _, err := r.pool.Exec(ctx, insertWalletSQL, userID); err != nil {
		return nil, fmt.Errorf("creating wallet for %q: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, getWalletSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting wallet for %q: %w", userID, err)
	}
	w, err := pgx.CollectExactlyOneRow(rows, scanWallet)
	if err != nil {
		return nil, fmt.Errorf("getting wallet for %q: %w", userID, err)
	}
	return &w, nil
}

// Apply adjusts the balance and appends the ledger entry in one database
// transaction.
func (r *WalletRepository) Apply(ctx context.Context, t wallet.Transaction, expectedVersion int) (*wallet.Wallet, error) {
	delta := t.Amount
	if t.Type == wallet.TypeDebit {
		delta = t.Amount.Neg()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning wallet tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, applyWalletSQL, t.UserID, delta, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("applying wallet tx for %q: %w", t.UserID, err)
	}
	w, err := pgx.CollectExactlyOneRow(rows, scanWallet)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.applyError(ctx, t, delta, expectedVersion)
		}
		return nil, fmt.Errorf("applying wallet tx for %q: %w", t.UserID, err)
	}

	metadata, err := json.Marshal(emptyMetadata(t.Metadata))
	if err != nil {
		return nil, fmt.Errorf("encoding tx metadata: %w", err)
	}
	_, err = tx.Exec(ctx, insertWalletTxSQL,
		t.ID, t.UserID, t.Type, t.Amount, t.Description, t.Reference, t.Source, metadata, t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("recording wallet tx for %q: %w", t.UserID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing wallet tx for %q: %w", t.UserID, err)
	}
	return &w, nil
}

// ListTransactions returns the user's ledger, newest first.
func (r *WalletRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]wallet.Transaction, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countWalletTxSQL, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting wallet txs for %q: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, listWalletTxSQL, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing wallet txs for %q: %w", userID, err)
	}
	txs, err := pgx.CollectRows(rows, scanWalletTx)
	if err != nil {
		return nil, 0, fmt.Errorf("listing wallet txs for %q: %w", userID, err)
	}
	return txs, total, nil
}

// applyError tells an overdraft apart from a concurrent write after the
// guarded update matched no row.
func (r *WalletRepository) applyError(ctx context.Context, t wallet.Transaction, delta decimal.Decimal, expectedVersion int) error {
	w, err := r.GetOrCreate(ctx, t.UserID)
	if err != nil {
		return err
	}
	if w.Version != expectedVersion {
		return wallet.ErrVersionConflict
	}
	if w.Balance.Add(delta).IsNegative() {
		return wallet.ErrInsufficientBalance
	}
	return fmt.Errorf("applying wallet tx for %q: no row matched", t.UserID)
}

func emptyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func scanWallet(row pgx.CollectableRow) (wallet.Wallet, error) {
	var w wallet.Wallet
	err := row.Scan(&w.UserID, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func scanWalletTx(row pgx.CollectableRow) (wallet.Transaction, error) {
	var (
		t        wallet.Transaction
		metadata []byte
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Description, &t.Reference,
		&t.Source, &metadata, &t.CreatedAt,
	)
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
		return t, fmt.Errorf("decoding tx metadata: %w", err)
	}
	return t, nil
}
