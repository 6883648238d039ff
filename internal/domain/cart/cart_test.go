package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// assertInvariants checks the derived-totals invariant after any mutation:
// TotalPrice equals the sum of line totals and FinalPrice equals
// max(0, TotalPrice - DiscountAmount).
func assertInvariants(t *testing.T, c *Cart) {
	t.Helper()

	sum := decimal.Zero
	count := 0
	for _, item := range c.Items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		count += item.Quantity
	}
	assert.True(t, sum.Round(2).Equal(c.TotalPrice), "total %s != sum of lines %s", c.TotalPrice, sum)
	assert.Equal(t, count, c.TotalItems)

	final := c.TotalPrice.Sub(c.DiscountAmount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	assert.True(t, final.Equal(c.FinalPrice), "final %s != total-discount %s", c.FinalPrice, final)
}

func TestAddItem_MergesIdenticalVariantSelection(t *testing.T) {
	c := New("u1")
	c.AddItem(Item{ProductID: "p1", Price: dec("10"), Quantity: 2, Variants: map[string]string{"size": "M"}})
	c.AddItem(Item{ProductID: "p1", Price: dec("10"), Quantity: 1, Variants: map[string]string{"size": "M"}})

	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assertInvariants(t, c)
}

func TestAddItem_DifferentVariantIsDistinctLine(t *testing.T) {
	c := New("u1")
	c.AddItem(Item{ProductID: "p1", Price: dec("10"), Quantity: 1, Variants: map[string]string{"size": "M"}})
	c.AddItem(Item{ProductID: "p1", Price: dec("10"), Quantity: 1, Variants: map[string]string{"size": "L"}})

	require.Len(t, c.Items, 2)
	assertInvariants(t, c)
}

func TestUpdateQuantity_ZeroDelegatesToRemove(t *testing.T) {
	c := New("u1")
	c.AddItem(Item{ProductID: "p1", Price: dec("10"), Quantity: 2})

	require.NoError(t, c.UpdateQuantity("p1", nil, 0))
	assert.Empty(t, c.Items)
	assert.True(t, c.TotalPrice.IsZero())
	assertInvariants(t, c)
}

func TestUpdateQuantity_UnknownLine(t *testing.T) {
	c := New("u1")
	require.ErrorIs(t, c.UpdateQuantity("nope", nil, 3), ErrItemNotFound)
}

func TestTotalsRecomputedAfterEveryMutation(t *testing.T) {
	c := New("u1")

	c.AddItem(Item{ProductID: "a", Price: dec("10"), Quantity: 2})
	assertInvariants(t, c)
	assert.True(t, c.TotalPrice.Equal(dec("20")))

	c.AddItem(Item{ProductID: "b", Price: dec("5"), Quantity: 1})
	assertInvariants(t, c)
	assert.True(t, c.TotalPrice.Equal(dec("25")))

	require.NoError(t, c.UpdateQuantity("a", nil, 5))
	assertInvariants(t, c)
	assert.True(t, c.TotalPrice.Equal(dec("55")))

	require.NoError(t, c.RemoveItem("b", nil))
	assertInvariants(t, c)
	assert.True(t, c.TotalPrice.Equal(dec("50")))
}

func TestApplyCoupon_RecomputesDiscountOnLaterMutations(t *testing.T) {
	c := New("u1")
	c.AddItem(Item{ProductID: "a", Price: dec("100"), Quantity: 10})

	c.ApplyCoupon(&coupon.Coupon{
		Code:        "WELCOME20",
		Kind:        coupon.KindPercentage,
		Value:       dec("20"),
		MaxDiscount: dec("100"),
	})
	assert.True(t, c.DiscountAmount.Equal(dec("100")), "discount capped at 100, got %s", c.DiscountAmount)
	assert.True(t, c.FinalPrice.Equal(dec("900")))
	assertInvariants(t, c)

	// Shrinking the cart re-derives the discount from the new total.
	require.NoError(t, c.UpdateQuantity("a", nil, 4))
	assert.True(t, c.DiscountAmount.Equal(dec("80")), "20%% of 400, got %s", c.DiscountAmount)
	assertInvariants(t, c)
}

func TestApplyCoupon_ReplacesSingleSlot(t *testing.T) {
	c := New("u1")
	c.AddItem(Item{ProductID: "a", Price: dec("50"), Quantity: 1})

	c.ApplyCoupon(&coupon.Coupon{Code: "FIRST", Kind: coupon.KindFixed, Value: dec("5")})
	c.ApplyCoupon(&coupon.Coupon{Code: "SECOND", Kind: coupon.KindFixed, Value: dec("10")})

	require.NotNil(t, c.Coupon)
	assert.Equal(t, "SECOND", c.Coupon.Code)
	assert.True(t, c.DiscountAmount.Equal(dec("10")))
	assertInvariants(t, c)
}

func TestFixedCouponNeverDrivesFinalNegative(t *testing.T) {
	c := New("u1")
	c.AddItem(Item{ProductID: "a", Price: dec("3"), Quantity: 1})
	c.ApplyCoupon(&coupon.Coupon{Code: "BIG", Kind: coupon.KindFixed, Value: dec("50")})

	assert.True(t, c.DiscountAmount.Equal(dec("3")), "discount clamped to total, got %s", c.DiscountAmount)
	assert.True(t, c.FinalPrice.IsZero())
	assertInvariants(t, c)
}

func TestClear_EmptiesItemsAndCouponTogether(t *testing.T) {
	c := New("u1")
	c.AddItem(Item{ProductID: "a", Price: dec("10"), Quantity: 1})
	c.ApplyCoupon(&coupon.Coupon{Code: "X", Kind: coupon.KindFixed, Value: dec("1")})

	c.Clear()

	assert.Empty(t, c.Items)
	assert.Nil(t, c.Coupon)
	assert.True(t, c.TotalPrice.IsZero())
	assert.True(t, c.FinalPrice.IsZero())
	assertInvariants(t, c)
}
