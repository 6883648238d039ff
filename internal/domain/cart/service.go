package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/product"
)

// Service coordinates cart mutations with the product catalog and coupon
// evaluator. Every operation loads the cart, mutates the aggregate, and
// saves it under the optimistic version check.
type Service struct {
	carts    Repository
	products product.Repository
	coupons  *coupon.Evaluator
}

// NewService creates a cart Service with the required dependencies.
func NewService(carts Repository, products product.Repository, coupons *coupon.Evaluator) *Service {
	return &Service{carts: carts, products: products, coupons: coupons}
}

// Get returns the user's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	return s.carts.GetOrCreate(ctx, userID)
}

// AddItem snapshots the product's current price, name and image into a
// cart line and persists the cart.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int, variants map[string]string) (*Cart, error) {
	if quantity < 1 {
		return nil, errors.New("quantity must be at least 1")
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.AddItem(Item{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.Image,
		Price:     p.Price,
		Quantity:  quantity,
		Variants:  variants,
	})

	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// UpdateQuantity changes a line's quantity; zero or less removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, variants map[string]string, quantity int) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.UpdateQuantity(productID, variants, quantity)
	})
}

// RemoveItem removes the matching line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string, variants map[string]string) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.RemoveItem(productID, variants)
	})
}

// ApplyCoupon validates the code against the cart's current total and
// fills the single coupon slot. Validation alone never touches the usage
// ledger; that happens once at checkout.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*Cart, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	ev, err := s.coupons.Evaluate(ctx, code, userID, c.TotalPrice)
	if err != nil {
		return nil, err
	}

	c.ApplyCoupon(ev.Coupon)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveCoupon clears the coupon slot.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.RemoveCoupon()
		return nil
	})
}

// Clear empties the cart's items and coupon.
func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}
