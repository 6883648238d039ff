// Package settings stores site-wide configuration values as JSON
// documents keyed by name, e.g. tax rate, store contacts or feature
// toggles. Values are opaque to the backend; validation is the admin
// frontend's concern.
package settings

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned for keys that have never been set.
var ErrNotFound = errors.New("setting not found")

// Repository persists settings.
type Repository interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	All(ctx context.Context) (map[string]json.RawMessage, error)
}
