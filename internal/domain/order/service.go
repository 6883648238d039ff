package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/cart"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/product"
	"github.com/Daninc24/dropshipping-sub001/internal/events"
)

// ShippingQuote is the fee and SLA window for delivering to a zone.
type ShippingQuote struct {
	Fee     decimal.Decimal `json:"fee"`
	MinDays int             `json:"min_days"`
	MaxDays int             `json:"max_days"`
}

// FeeQuoter computes the shipping fee for a zone and cart value. The
// delivery package provides the zone-backed implementation.
type FeeQuoter interface {
	Quote(ctx context.Context, zoneID string, itemsPrice decimal.Decimal) (ShippingQuote, error)
}

// Service owns checkout and order lifecycle operations.
type Service struct {
	orders   Repository
	carts    cart.Repository
	products product.Repository
	coupons  *coupon.Evaluator
	fees     FeeQuoter
	pub      events.Publisher
	lg       *zap.Logger
	taxRate  decimal.Decimal
	now      func() time.Time
}

// NewService creates an order Service. taxRate is a fraction, e.g. 0.16
// for 16% VAT.
func NewService(
	orders Repository,
	carts cart.Repository,
	products product.Repository,
	coupons *coupon.Evaluator,
	fees FeeQuoter,
	pub events.Publisher,
	lg *zap.Logger,
	taxRate decimal.Decimal,
) *Service {
	return &Service{
		orders:   orders,
		carts:    carts,
		products: products,
		coupons:  coupons,
		fees:     fees,
		pub:      pub,
		lg:       lg,
		taxRate:  taxRate,
		now:      time.Now,
	}
}

// CheckoutRequest holds the input for creating an order from a cart.
type CheckoutRequest struct {
	UserID          string
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
}

// Checkout snapshots the user's cart into an immutable order: it validates
// stock, re-evaluates the applied coupon, computes tax and shipping,
// claims the cart under its version check, decrements stock, records the
// coupon redemption and emits an order.created event.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	c, err := s.carts.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	if err := s.validateStock(ctx, c.Items); err != nil {
		return nil, err
	}

	// Re-evaluate the coupon against the final cart total. The usage
	// ledger is only touched after the order exists.
	var eval *coupon.Evaluation
	discount := decimal.Zero
	couponCode := ""
	if c.Coupon != nil {
		eval, err = s.coupons.Evaluate(ctx, c.Coupon.Code, req.UserID, c.TotalPrice)
		if err != nil {
			return nil, err
		}
		discount = eval.Discount
		couponCode = eval.Coupon.Code
	}

	now := s.now()
	o := &Order{
		ID:              uuid.New().String(),
		OrderNumber:     s.newOrderNumber(now),
		UserID:          req.UserID,
		Items:           freezeItems(c.Items),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Payment: PaymentInfo{
			Method: req.PaymentMethod,
			Status: PaymentPending,
		},
		DiscountAmount: discount,
		CouponCode:     couponCode,
		Status:         StatusPending,
		History: []HistoryEntry{{
			Status: StatusPending,
			At:     now,
			Note:   "order created",
			Actor:  req.UserID,
		}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.ComputeTotals()
	o.TaxPrice = o.ItemsPrice.Mul(s.taxRate).Round(2)

	if zone := req.ShippingAddress.ZoneID; zone != "" {
		quote, err := s.fees.Quote(ctx, zone, o.ItemsPrice)
		if err != nil {
			return nil, errors.Wrap(err, "quote shipping")
		}
		o.ShippingPrice = quote.Fee
	}
	o.ComputeTotals()

	// Claim the cart under its version check first so concurrent
	// checkouts of the same cart are mutually exclusive. The items stay
	// in place until the order exists.
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "claim cart")
	}

	if err := s.reserveStock(ctx, o.Items); err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, o); err != nil {
		s.releaseStock(ctx, o.Items)
		return nil, errors.Wrap(err, "create order")
	}

	// The order exists now; a stale cart must not fail the checkout.
	c.Clear()
	if err := s.carts.Save(ctx, c); err != nil {
		s.lg.Error("Clearing cart after checkout failed",
			zap.String("order_id", o.ID),
			zap.String("user_id", o.UserID),
			zap.Error(err))
	}

	// The redemption ledger is appended exactly once per checkout. A
	// failure here is logged, not rolled back: the order already exists.
	if eval != nil {
		if err := s.coupons.Use(ctx, eval.Coupon, req.UserID, o.TotalPrice, discount); err != nil {
			s.lg.Error("Recording coupon usage failed",
				zap.String("order_id", o.ID),
				zap.String("coupon", couponCode),
				zap.Error(err))
		}
	}

	s.publish(ctx, events.Event{
		Kind:    events.KindOrderCreated,
		OrderID: o.ID,
		UserID:  o.UserID,
		At:      now,
		Payload: map[string]any{"order_number": o.OrderNumber, "total": o.TotalPrice.String()},
	})

	return o, nil
}

// Cancel cancels an order still in pending, confirmed or processing,
// restores the reserved stock and reverses the products' sales counters.
func (s *Service) Cancel(ctx context.Context, orderID, note, actor string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Cancellable() {
		return nil, ErrNotCancellable
	}

	if err := o.UpdateStatus(StatusCancelled, note, actor, s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	s.releaseStock(ctx, o.Items)

	s.publish(ctx, events.Event{
		Kind:    events.KindOrderStatusChanged,
		OrderID: o.ID,
		UserID:  o.UserID,
		At:      s.now(),
		Payload: map[string]any{"status": string(StatusCancelled)},
	})
	return o, nil
}

// UpdateStatus applies an admin-driven status transition and persists it.
// Transitions with compensation side effects do not take the generic
// path: cancellation goes through Cancel so stock and sales counters are
// restored, and refunds are rejected here because only the payment refund
// flow credits the wallet back.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status, note, actor string) (*Order, error) {
	switch to {
	case StatusCancelled:
		return s.Cancel(ctx, orderID, note, actor)
	case StatusRefunded:
		return nil, ErrRefundViaPayment
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := o.UpdateStatus(to, note, actor, s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	s.publish(ctx, events.Event{
		Kind:    events.KindOrderStatusChanged,
		OrderID: o.ID,
		UserID:  o.UserID,
		At:      s.now(),
		Payload: map[string]any{"status": string(to)},
	})
	return o, nil
}

// Get returns a single order by id.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int, error) {
	return s.orders.ListByUser(ctx, userID, limit, offset)
}

// List returns orders across all users, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]Order, int, error) {
	return s.orders.List(ctx, status, limit, offset)
}

func (s *Service) validateStock(ctx context.Context, items []cart.Item) error {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return product.ErrNotFound
		}
		if p.StockQuantity < it.Quantity {
			return &product.InsufficientStockError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: p.StockQuantity,
			}
		}
	}
	return nil
}

// reserveStock decrements stock and bumps sales for every line. When a
// line fails midway, the earlier adjustments are compensated best-effort.
func (s *Service) reserveStock(ctx context.Context, items []Item) error {
	for i, it := range items {
		if err := s.products.AdjustStock(ctx, it.ProductID, -it.Quantity, it.Quantity); err != nil {
			s.releaseStock(ctx, items[:i])
			return err
		}
	}
	return nil
}

// releaseStock restores stock and reverses the sales counters.
func (s *Service) releaseStock(ctx context.Context, items []Item) {
	for _, it := range items {
		if err := s.products.AdjustStock(ctx, it.ProductID, it.Quantity, -it.Quantity); err != nil {
			s.lg.Error("Restoring stock failed",
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err))
		}
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.lg.Warn("Publishing event failed", zap.String("kind", ev.Kind), zap.Error(err))
	}
}

func (s *Service) newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("SO-%s-%s", now.Format("20060102"), suffix)
}

func freezeItems(items []cart.Item) []Item {
	frozen := make([]Item, len(items))
	for i, it := range items {
		variants := make(map[string]string, len(it.Variants))
		for k, v := range it.Variants {
			variants[k] = v
		}
		if len(variants) == 0 {
			variants = nil
		}
		frozen[i] = Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Variants:  variants,
		}
	}
	return frozen
}
