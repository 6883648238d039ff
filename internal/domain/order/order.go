package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order operations.
var (
	ErrNotFound         = errors.New("order not found")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNotCancellable   = errors.New("order cannot be cancelled at its current status")
	ErrVersionConflict  = errors.New("order was modified concurrently")
	ErrRefundViaPayment = errors.New("refunds must go through the payment refund flow")
)

// Status enumerates order lifecycle states.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
	StatusDeliveryFailed Status = "delivery_failed"
)

// PaymentStatus enumerates payment states within an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Item is a frozen copy of a cart line at checkout time. Name, price and
// image are decoupled from the live product so historical orders stay
// immutable when the catalog changes.
type Item struct {
	ProductID string            `json:"product_id"`
	Name      string            `json:"name"`
	Image     string            `json:"image"`
	Price     decimal.Decimal   `json:"price"`
	Quantity  int               `json:"quantity"`
	Variants  map[string]string `json:"variants,omitempty"`
}

// Total returns price * quantity for this line.
func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Address is a shipping or billing address snapshot.
type Address struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	ZoneID   string `json:"zone_id,omitempty"`
}

// HistoryEntry is one record of the append-only status audit trail.
type HistoryEntry struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
	Actor  string    `json:"actor,omitempty"`
}

// DeliveryInfo is the delivery sub-document embedded on an order once an
// agent is assigned. Its Status uses the delivery vocabulary (assigned,
// picked_up, in_transit, delivered, failed), distinct from the order's.
type DeliveryInfo struct {
	AgentID     string     `json:"agent_id"`
	ZoneID      string     `json:"zone_id,omitempty"`
	Status      string     `json:"status"`
	AssignedAt  time.Time  `json:"assigned_at"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

// PaymentInfo tracks how and whether the order was paid.
type PaymentInfo struct {
	Method            string        `json:"method"`
	TransactionID     string        `json:"transaction_id,omitempty"`
	CheckoutRequestID string        `json:"checkout_request_id,omitempty"`
	Status            PaymentStatus `json:"status"`
	PaidAt            *time.Time    `json:"paid_at,omitempty"`
}

// Order is created once per checkout. Items and prices are immutable;
// only the status, payment and delivery sub-documents change afterwards,
// and every status change goes through UpdateStatus.
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	Items           []Item          `json:"items"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  Address         `json:"billing_address"`
	Payment         PaymentInfo     `json:"payment"`
	ItemsPrice      decimal.Decimal `json:"items_price"`
	TaxPrice        decimal.Decimal `json:"tax_price"`
	ShippingPrice   decimal.Decimal `json:"shipping_price"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Status          Status          `json:"status"`
	History         []HistoryEntry  `json:"history"`
	Delivery        *DeliveryInfo   `json:"delivery,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	Version         int             `json:"version"`
	DeletedAt       *time.Time      `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ComputeTotals re-derives ItemsPrice and TotalPrice from the line items
// and the stored tax/shipping/discount figures. Called before every save
// so the totals are never trusted from caller input.
func (o *Order) ComputeTotals() {
	items := decimal.Zero
	for _, it := range o.Items {
		items = items.Add(it.Total())
	}
	o.ItemsPrice = items.Round(2)

	total := o.ItemsPrice.Add(o.TaxPrice).Add(o.ShippingPrice).Sub(o.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.TotalPrice = total.Round(2)
}

// Cancellable reports whether the order may still be cancelled. Orders
// that have shipped or reached a terminal state cannot be.
func (o *Order) Cancellable() bool {
	switch o.Status {
	case StatusPending, StatusConfirmed, StatusProcessing:
		return true
	default:
		return false
	}
}

// Repository provides order persistence. Update is guarded by the order's
// version; both methods exclude soft-deleted rows explicitly.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// GetByCheckoutRequestID resolves the order a gateway callback belongs
	// to via the stored correlation id.
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int, error)
	List(ctx context.Context, status Status, limit, offset int) ([]Order, int, error)
	Update(ctx context.Context, o *Order) error
	// SoftDelete marks the order deleted; it is never physically removed.
	SoftDelete(ctx context.Context, id string) error
}
