package coupon

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage applies value% of the cart amount, optionally capped
	// by MaxDiscount.
	KindPercentage Kind = "percentage"
	// KindFixed applies a flat monetary discount capped at the cart amount.
	KindFixed Kind = "fixed"
)

// Status is derived from the current time and counters. It is never stored.
type Status string

const (
	StatusInactive  Status = "inactive"
	StatusScheduled Status = "scheduled"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
	StatusActive    Status = "active"
)

// Validation failures, ordered the way Validate checks them. The first
// failing reason wins; reasons are never aggregated.
var (
	ErrNotFound         = errors.New("coupon not found")
	ErrInactive         = errors.New("coupon is not active")
	ErrNotStarted       = errors.New("coupon is not yet valid")
	ErrExpired          = errors.New("coupon has expired")
	ErrExhausted        = errors.New("coupon usage limit reached")
	ErrBelowMinimum     = errors.New("cart amount is below the coupon minimum")
	ErrUserNotAllowed   = errors.New("coupon is not available for this user")
	ErrUserLimitReached = errors.New("coupon usage limit for this user reached")
	ErrVersionConflict  = errors.New("coupon was modified concurrently")
)

// Coupon is a global discount rule keyed by its uppercase code.
type Coupon struct {
	Code        string          `json:"code"`
	Kind        Kind            `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	MinAmount   decimal.Decimal `json:"min_amount"`
	MaxDiscount decimal.Decimal `json:"max_discount"` // percentage kind only; zero means no cap
	UsageLimit  int             `json:"usage_limit"`  // global; zero means unlimited
	UsageCount  int             `json:"usage_count"`
	UserLimit   int             `json:"user_limit"` // per user; zero means unlimited
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      time.Time       `json:"ends_at"`
	Active      bool            `json:"active"`
	// AllowedUsers, when non-empty, restricts redemption to the listed
	// user ids. ExcludedUsers always wins over AllowedUsers.
	AllowedUsers  []string `json:"allowed_users,omitempty"`
	ExcludedUsers []string `json:"excluded_users,omitempty"`
	Description   string   `json:"description"`
	Version       int      `json:"version"`
}

// Usage is one entry of the append-only redemption ledger.
type Usage struct {
	CouponCode     string
	UserID         string
	OrderAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}

// Status derives the coupon's lifecycle state at the given instant.
func (c *Coupon) Status(now time.Time) Status {
	switch {
	case !c.Active:
		return StatusInactive
	case now.Before(c.StartsAt):
		return StatusScheduled
	case !now.Before(c.EndsAt):
		return StatusExpired
	case c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit:
		return StatusExhausted
	default:
		return StatusActive
	}
}

// Validate checks redemption eligibility in a fixed order and returns the
// first failing reason: active flag, validity window, global cap, minimum
// cart amount, user deny/allow lists, per-user cap.
func (c *Coupon) Validate(now time.Time, userID string, cartAmount decimal.Decimal, userUses int) error {
	if !c.Active {
		return ErrInactive
	}
	if now.Before(c.StartsAt) {
		return ErrNotStarted
	}
	if !now.Before(c.EndsAt) {
		return ErrExpired
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return ErrExhausted
	}
	if cartAmount.LessThan(c.MinAmount) {
		return ErrBelowMinimum
	}
	if slices.Contains(c.ExcludedUsers, userID) {
		return ErrUserNotAllowed
	}
	if len(c.AllowedUsers) > 0 && !slices.Contains(c.AllowedUsers, userID) {
		return ErrUserNotAllowed
	}
	if c.UserLimit > 0 && userUses >= c.UserLimit {
		return ErrUserLimitReached
	}
	return nil
}

// Discount computes the discount this coupon grants on the given amount.
// The result never exceeds the amount itself.
func (c *Coupon) Discount(amount decimal.Decimal) decimal.Decimal {
	return ComputeDiscount(c.Kind, c.Value, c.MaxDiscount, amount)
}

var hundred = decimal.NewFromInt(100)

// ComputeDiscount applies a discount rule to an amount. Percentage kind
// multiplies by value/100 and clamps to maxDiscount when set; fixed kind
// uses the flat value. The result is clamped to [0, amount] and rounded
// to 2 decimal places.
func ComputeDiscount(kind Kind, value, maxDiscount, amount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch kind {
	case KindPercentage:
		d = amount.Mul(value).Div(hundred)
		if maxDiscount.IsPositive() && d.GreaterThan(maxDiscount) {
			d = maxDiscount
		}
	case KindFixed:
		d = value
	default:
		return decimal.Zero
	}
	if d.GreaterThan(amount) {
		d = amount
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d.Round(2)
}

// Repository provides coupon lookup and ledger mutation.
type Repository interface {
	// FindByCode looks up a coupon by code, case-insensitively, regardless
	// of its active flag. Returns ErrNotFound when absent.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, limit, offset int) ([]Coupon, int, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	// Deactivate soft-deletes a coupon by clearing its active flag.
	Deactivate(ctx context.Context, code string) error

	// CountUserUsage returns how many ledger entries exist for the given
	// coupon and user.
	CountUserUsage(ctx context.Context, code, userID string) (int, error)

	// AppendUsage atomically appends a ledger entry and increments the
	// global usage counter, guarded by the coupon's version.
	AppendUsage(ctx context.Context, u Usage, expectedVersion int) error
}
