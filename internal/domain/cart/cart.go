package cart

import (
	"context"
	"maps"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
)

var (
	// ErrItemNotFound is returned when a line item is absent from the cart.
	ErrItemNotFound = errors.New("item not found in cart")
	// ErrVersionConflict is returned when a concurrent mutation bumped the
	// cart version between read and write.
	ErrVersionConflict = errors.New("cart was modified concurrently")
)

// Item is one cart line. Price is a snapshot of the product's unit price
// at the time the item was added.
type Item struct {
	ProductID string            `json:"product_id"`
	Name      string            `json:"name"`
	Image     string            `json:"image"`
	Price     decimal.Decimal   `json:"price"`
	Quantity  int               `json:"quantity"`
	Variants  map[string]string `json:"variants,omitempty"`
}

// AppliedCoupon is the single coupon slot on a cart. It carries enough of
// the rule to recompute the discount on every mutation without another
// coupon lookup.
type AppliedCoupon struct {
	Code        string          `json:"code"`
	Kind        coupon.Kind     `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	MaxDiscount decimal.Decimal `json:"max_discount"`
}

// Cart holds a user's line items and derived totals. There is exactly one
// cart per user; it is created lazily on first access and cleared, never
// deleted, on checkout.
//
// TotalItems, TotalPrice, DiscountAmount and FinalPrice are derived:
// every mutating method ends by recomputing them from the items, so they
// are never trusted from caller input.
type Cart struct {
	UserID         string          `json:"user_id"`
	Items          []Item          `json:"items"`
	Coupon         *AppliedCoupon  `json:"coupon,omitempty"`
	TotalItems     int             `json:"total_items"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalPrice     decimal.Decimal `json:"final_price"`
	Version        int             `json:"version"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// New returns an empty cart for the given user.
func New(userID string) *Cart {
	c := &Cart{UserID: userID, Version: 1}
	c.recompute()
	return c
}

// AddItem merges the item into the cart. An identical product with the
// exact same variant selection increments the existing line's quantity; a
// different variant selection is a distinct line.
func (c *Cart) AddItem(item Item) {
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID && maps.Equal(c.Items[i].Variants, item.Variants) {
			c.Items[i].Quantity += item.Quantity
			c.recompute()
			return
		}
	}
	c.Items = append(c.Items, item)
	c.recompute()
}

// UpdateQuantity sets the quantity of the matching line. A quantity of
// zero or less removes the line.
func (c *Cart) UpdateQuantity(productID string, variants map[string]string, quantity int) error {
	if quantity <= 0 {
		return c.RemoveItem(productID, variants)
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID && maps.Equal(c.Items[i].Variants, variants) {
			c.Items[i].Quantity = quantity
			c.recompute()
			return nil
		}
	}
	return ErrItemNotFound
}

// RemoveItem deletes the matching line from the cart.
func (c *Cart) RemoveItem(productID string, variants map[string]string) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && maps.Equal(c.Items[i].Variants, variants) {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.recompute()
			return nil
		}
	}
	return ErrItemNotFound
}

// ApplyCoupon replaces the single coupon slot. Only one coupon is active
// at a time.
func (c *Cart) ApplyCoupon(cp *coupon.Coupon) {
	c.Coupon = &AppliedCoupon{
		Code:        cp.Code,
		Kind:        cp.Kind,
		Value:       cp.Value,
		MaxDiscount: cp.MaxDiscount,
	}
	c.recompute()
}

// RemoveCoupon clears the coupon slot.
func (c *Cart) RemoveCoupon() {
	c.Coupon = nil
	c.recompute()
}

// Clear empties the items and the coupon together. Used after a successful
// checkout.
func (c *Cart) Clear() {
	c.Items = nil
	c.Coupon = nil
	c.recompute()
}

// recompute derives TotalItems, TotalPrice, DiscountAmount and FinalPrice
// from the current items and coupon. Called at the end of every mutation.
func (c *Cart) recompute() {
	total := decimal.Zero
	count := 0
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		count += item.Quantity
	}
	c.TotalItems = count
	c.TotalPrice = total.Round(2)

	if c.Coupon != nil {
		c.DiscountAmount = coupon.ComputeDiscount(c.Coupon.Kind, c.Coupon.Value, c.Coupon.MaxDiscount, c.TotalPrice)
	} else {
		c.DiscountAmount = decimal.Zero
	}

	final := c.TotalPrice.Sub(c.DiscountAmount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	c.FinalPrice = final
}

// Repository provides cart persistence. Save uses the cart's version as an
// optimistic concurrency token: a stale version fails with
// ErrVersionConflict so two concurrent checkouts cannot both succeed
// against the same line items.
type Repository interface {
	// GetOrCreate returns the user's cart, creating an empty one when absent.
	GetOrCreate(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}
