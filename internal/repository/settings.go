package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/settings"
)

const (
	getSettingSQL = `SELECT value FROM settings WHERE key = $1`

	setSettingSQL = `INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	allSettingsSQL = `SELECT key, value FROM settings ORDER BY key`
)

var _ settings.Repository = (*SettingsRepository)(nil)

// SettingsRepository implements settings.Repository backed by PostgreSQL.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given
// pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get returns one setting value.
func (r *SettingsRepository) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var value []byte
	err := r.pool.QueryRow(ctx, getSettingSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settings.ErrNotFound
		}
		return nil, fmt.Errorf("getting setting %q: %w", key, err)
	}
	return value, nil
}

// Set upserts a setting value.
func (r *SettingsRepository) Set(ctx context.Context, key string, value json.RawMessage) error {
	if _, err := r.pool.Exec(ctx, setSettingSQL, key, []byte(value)); err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

// All returns every setting keyed by name.
func (r *SettingsRepository) All(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := r.pool.Query(ctx, allSettingsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	return out, nil
}
