package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	Repository

	coupon    *Coupon
	err       error
	userUses  int
	usages    []Usage
	appendErr error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Coupon, error) {
	return m.coupon, m.err
}

func (m *mockCouponRepo) CountUserUsage(_ context.Context, _, _ string) (int, error) {
	return m.userUses, nil
}

func (m *mockCouponRepo) AppendUsage(_ context.Context, u Usage, _ int) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.usages = append(m.usages, u)
	return nil
}

func validCoupon() *Coupon {
	return &Coupon{
		Code:     "SAVE10",
		Kind:     KindPercentage,
		Value:    decimal.NewFromInt(10),
		StartsAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:   true,
		Version:  1,
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		mutate       func(*Coupon)
		userUses     int
		userID       string
		cartAmount   decimal.Decimal
		wantDiscount decimal.Decimal
		wantErr      error
	}{
		{
			name:         "valid percentage coupon",
			cartAmount:   decimal.NewFromInt(200),
			wantDiscount: decimal.NewFromInt(20),
		},
		{
			name:       "inactive flag wins first",
			mutate:     func(c *Coupon) { c.Active = false; c.UsageLimit, c.UsageCount = 1, 1 },
			cartAmount: decimal.NewFromInt(200),
			wantErr:    ErrInactive,
		},
		{
			name:       "not yet started",
			mutate:     func(c *Coupon) { c.StartsAt = fixedNow.Add(time.Hour) },
			cartAmount: decimal.NewFromInt(200),
			wantErr:    ErrNotStarted,
		},
		{
			name:       "expired",
			mutate:     func(c *Coupon) { c.EndsAt = fixedNow.Add(-time.Hour) },
			cartAmount: decimal.NewFromInt(200),
			wantErr:    ErrExpired,
		},
		{
			name:       "end date is exclusive",
			mutate:     func(c *Coupon) { c.EndsAt = fixedNow },
			cartAmount: decimal.NewFromInt(200),
			wantErr:    ErrExpired,
		},
		{
			name:       "global usage cap reached",
			mutate:     func(c *Coupon) { c.UsageLimit, c.UsageCount = 100, 100 },
			cartAmount: decimal.NewFromInt(200),
			wantErr:    ErrExhausted,
		},
		{
			name:       "below minimum amount",
			mutate:     func(c *Coupon) { c.MinAmount = decimal.NewFromInt(50) },
			cartAmount: decimal.NewFromInt(40),
			wantErr:    ErrBelowMinimum,
		},
		{
			name:       "excluded user",
			mutate:     func(c *Coupon) { c.ExcludedUsers = []string{"u1"} },
			userID:     "u1",
			cartAmount: decimal.NewFromInt(200),
			wantErr:    ErrUserNotAllowed,
		},
		{
			name:       "not on allow list",
			mutate:     func(c *Coupon) { c.AllowedUsers = []string{"u2"} },
			userID:     "u1",
			cartAmount: decimal.NewFromInt(200),
			wantErr:    ErrUserNotAllowed,
		},
		{
			name:       "per-user cap reached",
			mutate:     func(c *Coupon) { c.UserLimit = 2 },
			userUses:   2,
			cartAmount: decimal.NewFromInt(200),
			wantErr:    ErrUserLimitReached,
		},
		{
			name:         "per-user cap with room",
			mutate:       func(c *Coupon) { c.UserLimit = 2 },
			userUses:     1,
			cartAmount:   decimal.NewFromInt(200),
			wantDiscount: decimal.NewFromInt(20),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCoupon()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			repo := &mockCouponRepo{coupon: c, userUses: tt.userUses}
			e := NewEvaluator(repo)
			e.now = func() time.Time { return fixedNow }

			got, err := e.Evaluate(context.Background(), c.Code, tt.userID, tt.cartAmount)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.wantDiscount.Equal(got.Discount),
				"expected discount %s, got %s", tt.wantDiscount, got.Discount)
		})
	}
}

func TestEvaluator_UnknownCode(t *testing.T) {
	repo := &mockCouponRepo{err: ErrNotFound}
	e := NewEvaluator(repo)

	_, err := e.Evaluate(context.Background(), "BOGUS", "u1", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluator_UseAppendsLedger(t *testing.T) {
	c := validCoupon()
	repo := &mockCouponRepo{coupon: c}
	e := NewEvaluator(repo)

	err := e.Use(context.Background(), c, "u1", decimal.NewFromInt(200), decimal.NewFromInt(20))
	require.NoError(t, err)
	require.Len(t, repo.usages, 1)
	assert.Equal(t, "SAVE10", repo.usages[0].CouponCode)
	assert.Equal(t, "u1", repo.usages[0].UserID)
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name        string
		kind        Kind
		value       string
		maxDiscount string
		amount      string
		want        string
	}{
		{"percentage basic", KindPercentage, "10", "0", "200", "20"},
		{"percentage capped by max discount", KindPercentage, "20", "100", "1000", "100"},
		{"percentage under cap", KindPercentage, "20", "100", "400", "80"},
		{"fixed flat value", KindFixed, "5", "0", "25", "5"},
		{"fixed clamped to amount", KindFixed, "50", "0", "30", "30"},
		{"percentage never exceeds amount", KindPercentage, "100", "0", "12.34", "12.34"},
		{"zero amount", KindFixed, "5", "0", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscount(tt.kind,
				decimal.RequireFromString(tt.value),
				decimal.RequireFromString(tt.maxDiscount),
				decimal.RequireFromString(tt.amount),
			)
			want := decimal.RequireFromString(tt.want)
			assert.True(t, want.Equal(got), "expected %s, got %s", want, got)
			assert.True(t, got.LessThanOrEqual(decimal.RequireFromString(tt.amount)))
		})
	}
}

// WELCOME20: 20% off, minimum 50, capped at 100.
func TestWelcome20Scenario(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c := &Coupon{
		Code:        "WELCOME20",
		Kind:        KindPercentage,
		Value:       decimal.NewFromInt(20),
		MinAmount:   decimal.NewFromInt(50),
		MaxDiscount: decimal.NewFromInt(100),
		StartsAt:    fixedNow.Add(-time.Hour),
		EndsAt:      fixedNow.Add(time.Hour),
		Active:      true,
	}
	repo := &mockCouponRepo{coupon: c}
	e := NewEvaluator(repo)
	e.now = func() time.Time { return fixedNow }

	got, err := e.Evaluate(context.Background(), "WELCOME20", "u1", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(got.Discount), "discount capped at 100, got %s", got.Discount)

	_, err = e.Evaluate(context.Background(), "WELCOME20", "u1", decimal.NewFromInt(40))
	require.ErrorIs(t, err, ErrBelowMinimum)
}

func TestStatusDerivation(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*Coupon)
		want   Status
	}{
		{"active", nil, StatusActive},
		{"inactive", func(c *Coupon) { c.Active = false }, StatusInactive},
		{"scheduled", func(c *Coupon) { c.StartsAt = fixedNow.Add(time.Hour) }, StatusScheduled},
		{"expired", func(c *Coupon) { c.EndsAt = fixedNow.Add(-time.Hour) }, StatusExpired},
		{"exhausted", func(c *Coupon) { c.UsageLimit, c.UsageCount = 5, 5 }, StatusExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCoupon()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			assert.Equal(t, tt.want, c.Status(fixedNow))
		})
	}
}
