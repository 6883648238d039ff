package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Evaluation is the outcome of a successful coupon evaluation.
type Evaluation struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Evaluator validates coupon codes against a user and cart amount, and
// records redemptions in the usage ledger.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Evaluate looks up the coupon, runs the eligibility checks, and computes
// the discount for the given cart amount. It does not touch the ledger;
// redemption is recorded separately by Use, exactly once per checkout.
func (e *Evaluator) Evaluate(ctx context.Context, code, userID string, cartAmount decimal.Decimal) (*Evaluation, error) {
	c, err := e.repo.FindByCode(ctx, normalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	userUses := 0
	if c.UserLimit > 0 {
		userUses, err = e.repo.CountUserUsage(ctx, c.Code, userID)
		if err != nil {
			return nil, errors.Wrap(err, "count user usage")
		}
	}

	if err := c.Validate(e.now(), userID, cartAmount, userUses); err != nil {
		return nil, err
	}

	return &Evaluation{
		Coupon:   c,
		Discount: c.Discount(cartAmount),
	}, nil
}

// Use appends a redemption to the usage ledger and bumps the global
// counter under the coupon's optimistic version check.
func (e *Evaluator) Use(ctx context.Context, c *Coupon, userID string, orderAmount, discountAmount decimal.Decimal) error {
	u := Usage{
		CouponCode:     c.Code,
		UserID:         userID,
		OrderAmount:    orderAmount,
		DiscountAmount: discountAmount,
		UsedAt:         e.now(),
	}
	if err := e.repo.AppendUsage(ctx, u, c.Version); err != nil {
		return errors.Wrap(err, "append coupon usage")
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
