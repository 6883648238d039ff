package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/order"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/wallet"
	"github.com/Daninc24/dropshipping-sub001/internal/events"
	"github.com/Daninc24/dropshipping-sub001/internal/mpesa"
)

// Payment methods stored on orders.
const (
	MethodMpesa  = "mpesa"
	MethodWallet = "wallet"
)

// STKPusher initiates an STK push. *mpesa.Client implements it.
type STKPusher interface {
	STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
}

// Service reconciles orders with their payments.
type Service struct {
	intents      IntentRepository
	orders       order.Repository
	wallets      *wallet.Service
	stk          STKPusher
	pub          events.Publisher
	lg           *zap.Logger
	cashbackRate decimal.Decimal
	now          func() time.Time
}

// NewService creates a payment Service. cashbackRate is a fraction of the
// order total credited to the wallet on successful mobile money payment,
// e.g. 0.01 for 1%.
func NewService(
	intents IntentRepository,
	orders order.Repository,
	wallets *wallet.Service,
	stk STKPusher,
	pub events.Publisher,
	lg *zap.Logger,
	cashbackRate decimal.Decimal,
) *Service {
	return &Service{
		intents:      intents,
		orders:       orders,
		wallets:      wallets,
		stk:          stk,
		pub:          pub,
		lg:           lg,
		cashbackRate: cashbackRate,
		now:          time.Now,
	}
}

// InitiateSTK sends a payment prompt for the order to the given phone and
// stores a pending intent keyed by the gateway's CheckoutRequestID. The
// payment outcome arrives later through HandleCallback.
func (s *Service) InitiateSTK(ctx context.Context, orderID, userID, phone string) (*Intent, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotOwner
	}
	if o.Payment.Status == order.PaymentCompleted {
		return nil, ErrAlreadyPaid
	}

	resp, err := s.stk.STKPush(ctx, mpesa.STKPushRequest{
		Phone:            phone,
		Amount:           o.TotalPrice,
		AccountReference: o.OrderNumber,
		Description:      "Order " + o.OrderNumber,
	})
	if err != nil {
		return nil, errors.Wrap(err, "stk push")
	}

	in := &Intent{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		OrderID:           o.ID,
		UserID:            userID,
		Phone:             phone,
		Amount:            o.TotalPrice,
		Status:            StatusPending,
		CreatedAt:         s.now(),
	}
	if err := s.intents.Create(ctx, in); err != nil {
		return nil, errors.Wrap(err, "store intent")
	}

	o.Payment.Method = MethodMpesa
	o.Payment.CheckoutRequestID = resp.CheckoutRequestID
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return in, nil
}

// HandleCallback applies the gateway's asynchronous payment result. A
// callback for an unknown CheckoutRequestID fails with ErrIntentNotFound;
// a repeated callback for an already-processed intent is a no-op. On
// success the order's payment is completed, the order moves to confirmed
// and cashback is credited exactly once. On failure only the payment
// status changes; the order itself is left for the customer to retry.
func (s *Service) HandleCallback(ctx context.Context, cb *mpesa.Callback) error {
	res := Result{
		Status:     StatusFailed,
		ResultCode: cb.ResultCode,
		ResultDesc: cb.ResultDesc,
	}
	if cb.Success() {
		res.Status = StatusCompleted
		res.Receipt = cb.Receipt
	}

	// Claiming the intent first makes duplicate callbacks no-ops and
	// guarantees the cashback below is credited at most once.
	in, err := s.intents.MarkProcessed(ctx, cb.CheckoutRequestID, res)
	if errors.Is(err, ErrAlreadyProcessed) {
		s.lg.Info("Ignoring duplicate payment callback",
			zap.String("checkout_request_id", cb.CheckoutRequestID))
		return nil
	}
	if err != nil {
		return err
	}

	o, err := s.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return errors.Wrap(err, "load order")
	}

	now := s.now()
	if !cb.Success() {
		o.Payment.Status = order.PaymentFailed
		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		s.publish(ctx, events.Event{
			Kind:    events.KindPaymentFailed,
			OrderID: o.ID,
			UserID:  o.UserID,
			At:      now,
			Payload: map[string]any{"reason": cb.ResultDesc},
		})
		return nil
	}

	o.Payment.Status = order.PaymentCompleted
	o.Payment.TransactionID = cb.Receipt
	o.Payment.PaidAt = &now
	if err := o.UpdateStatus(order.StatusConfirmed, "payment received", "system", now); err != nil {
		// The order moved past pending while the prompt was open. Record
		// the payment anyway; the status stays where it is.
		s.lg.Warn("Paid order not confirmable",
			zap.String("order_id", o.ID),
			zap.String("status", string(o.Status)))
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return errors.Wrap(err, "update order")
	}

	s.creditCashback(ctx, o)

	s.publish(ctx, events.Event{
		Kind:    events.KindPaymentCompleted,
		OrderID: o.ID,
		UserID:  o.UserID,
		At:      now,
		Payload: map[string]any{"receipt": cb.Receipt, "amount": in.Amount.String()},
	})
	return nil
}

// PayWithWallet pays the order synchronously from the user's wallet
// balance. Unlike mobile money there is no asynchronous leg: the debit,
// the payment record and the confirmed status are applied in one call.
func (s *Service) PayWithWallet(ctx context.Context, orderID, userID string) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotOwner
	}
	if o.Payment.Status == order.PaymentCompleted {
		return nil, ErrAlreadyPaid
	}

	if _, err := s.wallets.Debit(ctx, userID, o.TotalPrice, wallet.SourceOrderPayment,
		"payment for order "+o.OrderNumber, o.ID); err != nil {
		return nil, err
	}

	now := s.now()
	o.Payment.Method = MethodWallet
	o.Payment.Status = order.PaymentCompleted
	o.Payment.PaidAt = &now
	if err := o.UpdateStatus(order.StatusConfirmed, "paid from wallet", userID, now); err != nil {
		s.lg.Warn("Paid order not confirmable",
			zap.String("order_id", o.ID),
			zap.String("status", string(o.Status)))
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	s.publish(ctx, events.Event{
		Kind:    events.KindPaymentCompleted,
		OrderID: o.ID,
		UserID:  o.UserID,
		At:      now,
		Payload: map[string]any{"method": MethodWallet, "amount": o.TotalPrice.String()},
	})
	return o, nil
}

// Refund reverses a completed payment: the order moves to refunded and
// the full total is credited back to the customer's wallet. Admin only.
func (s *Service) Refund(ctx context.Context, orderID, note, actor string) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Payment.Status != order.PaymentCompleted {
		return nil, ErrNotPaid
	}

	now := s.now()
	if err := o.UpdateStatus(order.StatusRefunded, note, actor, now); err != nil {
		return nil, err
	}
	o.Payment.Status = order.PaymentRefunded
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	if _, err := s.wallets.Credit(ctx, o.UserID, o.TotalPrice, wallet.SourceRefund,
		"refund for order "+o.OrderNumber, o.ID); err != nil {
		s.lg.Error("Crediting refund failed",
			zap.String("order_id", o.ID),
			zap.String("user_id", o.UserID),
			zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Kind:    events.KindOrderStatusChanged,
		OrderID: o.ID,
		UserID:  o.UserID,
		At:      now,
		Payload: map[string]any{"status": string(order.StatusRefunded)},
	})
	return o, nil
}

func (s *Service) creditCashback(ctx context.Context, o *order.Order) {
	if !s.cashbackRate.IsPositive() {
		return
	}
	amount := o.TotalPrice.Mul(s.cashbackRate).Round(2)
	if !amount.IsPositive() {
		return
	}
	if _, err := s.wallets.Credit(ctx, o.UserID, amount, wallet.SourceCashback,
		"cashback for order "+o.OrderNumber, o.ID); err != nil {
		s.lg.Error("Crediting cashback failed",
			zap.String("order_id", o.ID),
			zap.String("user_id", o.UserID),
			zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.lg.Warn("Publishing event failed", zap.String("kind", ev.Kind), zap.Error(err))
	}
}
