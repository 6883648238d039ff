package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/order"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/wallet"
	"github.com/Daninc24/dropshipping-sub001/internal/events"
	"github.com/Daninc24/dropshipping-sub001/internal/mpesa"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type mockIntentRepo struct {
	intents map[string]*Intent
}

func newMockIntentRepo() *mockIntentRepo {
	return &mockIntentRepo{intents: make(map[string]*Intent)}
}

func (m *mockIntentRepo) Create(_ context.Context, in *Intent) error {
	m.intents[in.CheckoutRequestID] = in
	return nil
}

func (m *mockIntentRepo) GetByCheckoutRequestID(_ context.Context, id string) (*Intent, error) {
	in, ok := m.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return in, nil
}

func (m *mockIntentRepo) MarkProcessed(_ context.Context, id string, res Result) (*Intent, error) {
	in, ok := m.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	if in.ProcessedAt != nil {
		return nil, ErrAlreadyProcessed
	}
	now := fixedNow
	in.Status = res.Status
	in.ResultCode = res.ResultCode
	in.ResultDesc = res.ResultDesc
	in.Receipt = res.Receipt
	in.ProcessedAt = &now
	return in, nil
}

type mockOrderRepo struct {
	order.Repository

	orders  map[string]*order.Order
	updates int
}

func newMockOrderRepo(orders ...*order.Order) *mockOrderRepo {
	m := &mockOrderRepo{orders: make(map[string]*order.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *order.Order) error {
	m.updates++
	m.orders[o.ID] = o
	return nil
}

type memWalletRepo struct {
	wallets map[string]*wallet.Wallet
	ledger  []wallet.Transaction
}

func newMemWalletRepo() *memWalletRepo {
	return &memWalletRepo{wallets: make(map[string]*wallet.Wallet)}
}

func (m *memWalletRepo) GetOrCreate(_ context.Context, userID string) (*wallet.Wallet, error) {
	w, ok := m.wallets[userID]
	if !ok {
		w = &wallet.Wallet{UserID: userID, Balance: decimal.Zero, Version: 1}
		m.wallets[userID] = w
	}
	return w, nil
}

func (m *memWalletRepo) Apply(_ context.Context, tx wallet.Transaction, expectedVersion int) (*wallet.Wallet, error) {
	w := m.wallets[tx.UserID]
	if w.Version != expectedVersion {
		return nil, wallet.ErrVersionConflict
	}
	next := w.Balance
	if tx.Type == wallet.TypeDebit {
		next = next.Sub(tx.Amount)
	} else {
		next = next.Add(tx.Amount)
	}
	if next.IsNegative() {
		return nil, wallet.ErrInsufficientBalance
	}
	w.Balance = next
	w.Version++
	m.ledger = append(m.ledger, tx)
	return w, nil
}

func (m *memWalletRepo) ListTransactions(context.Context, string, int, int) ([]wallet.Transaction, int, error) {
	return m.ledger, len(m.ledger), nil
}

type mockSTK struct {
	calls int
	err   error
}

func (m *mockSTK) STKPush(_ context.Context, _ mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &mpesa.STKPushResponse{
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "ws_CO_test_1",
		ResponseCode:      "0",
	}, nil
}

func testOrder() *order.Order {
	return &order.Order{
		ID:          "o1",
		OrderNumber: "SO-20240601-ABCD1234",
		UserID:      "u1",
		Items: []order.Item{
			{ProductID: "p1", Name: "Widget", Price: dec("100"), Quantity: 1},
		},
		Payment:    order.PaymentInfo{Method: MethodMpesa, Status: order.PaymentPending},
		ItemsPrice: dec("100"),
		TotalPrice: dec("100"),
		Status:     order.StatusPending,
		History: []order.HistoryEntry{
			{Status: order.StatusPending, At: fixedNow, Note: "order created"},
		},
		Version: 1,
	}
}

type fixture struct {
	svc     *Service
	intents *mockIntentRepo
	orders  *mockOrderRepo
	wallets *memWalletRepo
	stk     *mockSTK
}

func newFixture(orders ...*order.Order) *fixture {
	f := &fixture{
		intents: newMockIntentRepo(),
		orders:  newMockOrderRepo(orders...),
		wallets: newMemWalletRepo(),
		stk:     &mockSTK{},
	}
	f.svc = NewService(f.intents, f.orders, wallet.NewService(f.wallets),
		f.stk, events.NopPublisher{}, zap.NewNop(), dec("0.01"))
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func TestInitiateSTK_StoresPendingIntent(t *testing.T) {
	f := newFixture(testOrder())

	in, err := f.svc.InitiateSTK(context.Background(), "o1", "u1", "0712345678")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, in.Status)
	assert.Equal(t, "ws_CO_test_1", in.CheckoutRequestID)
	assert.Equal(t, "o1", in.OrderID)
	assert.True(t, in.Amount.Equal(dec("100")))

	o := f.orders.orders["o1"]
	assert.Equal(t, "ws_CO_test_1", o.Payment.CheckoutRequestID)
	assert.Equal(t, MethodMpesa, o.Payment.Method)
}

func TestInitiateSTK_Guards(t *testing.T) {
	o := testOrder()
	f := newFixture(o)

	_, err := f.svc.InitiateSTK(context.Background(), "o1", "someone-else", "0712345678")
	require.ErrorIs(t, err, ErrNotOwner)

	o.Payment.Status = order.PaymentCompleted
	_, err = f.svc.InitiateSTK(context.Background(), "o1", "u1", "0712345678")
	require.ErrorIs(t, err, ErrAlreadyPaid)

	assert.Zero(t, f.stk.calls, "no push sent when guards fail")
}

func successCallback() *mpesa.Callback {
	return &mpesa.Callback{
		CheckoutRequestID: "ws_CO_test_1",
		ResultCode:        0,
		ResultDesc:        "Success",
		Receipt:           "NLJ7RT61SV",
		Amount:            dec("100"),
		Phone:             "254712345678",
	}
}

func TestHandleCallback_SuccessConfirmsAndCreditsCashback(t *testing.T) {
	f := newFixture(testOrder())
	_, err := f.svc.InitiateSTK(context.Background(), "o1", "u1", "0712345678")
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleCallback(context.Background(), successCallback()))

	o := f.orders.orders["o1"]
	assert.Equal(t, order.PaymentCompleted, o.Payment.Status)
	assert.Equal(t, "NLJ7RT61SV", o.Payment.TransactionID)
	require.NotNil(t, o.Payment.PaidAt)
	assert.Equal(t, order.StatusConfirmed, o.Status)

	// 1% of 100.
	w := f.wallets.wallets["u1"]
	require.NotNil(t, w)
	assert.True(t, w.Balance.Equal(dec("1")), "cashback = %s", w.Balance)
	require.Len(t, f.wallets.ledger, 1)
	assert.Equal(t, wallet.SourceCashback, f.wallets.ledger[0].Source)

	in := f.intents.intents["ws_CO_test_1"]
	assert.Equal(t, StatusCompleted, in.Status)
	assert.NotNil(t, in.ProcessedAt)
}

func TestHandleCallback_DuplicateIsNoOp(t *testing.T) {
	f := newFixture(testOrder())
	_, err := f.svc.InitiateSTK(context.Background(), "o1", "u1", "0712345678")
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleCallback(context.Background(), successCallback()))
	updatesAfterFirst := f.orders.updates

	require.NoError(t, f.svc.HandleCallback(context.Background(), successCallback()))

	assert.Equal(t, updatesAfterFirst, f.orders.updates, "duplicate must not touch the order")
	require.Len(t, f.wallets.ledger, 1, "cashback credited exactly once")
}

func TestHandleCallback_FailureLeavesOrderPending(t *testing.T) {
	f := newFixture(testOrder())
	_, err := f.svc.InitiateSTK(context.Background(), "o1", "u1", "0712345678")
	require.NoError(t, err)

	cb := &mpesa.Callback{
		CheckoutRequestID: "ws_CO_test_1",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}
	require.NoError(t, f.svc.HandleCallback(context.Background(), cb))

	o := f.orders.orders["o1"]
	assert.Equal(t, order.PaymentFailed, o.Payment.Status)
	assert.Equal(t, order.StatusPending, o.Status, "order stays pending for retry")
	assert.Empty(t, f.wallets.ledger)

	in := f.intents.intents["ws_CO_test_1"]
	assert.Equal(t, StatusFailed, in.Status)
	assert.Equal(t, 1032, in.ResultCode)
}

func TestHandleCallback_UnknownIntent(t *testing.T) {
	f := newFixture(testOrder())

	err := f.svc.HandleCallback(context.Background(), successCallback())
	require.ErrorIs(t, err, ErrIntentNotFound)
}

func TestPayWithWallet_DebitsAndConfirms(t *testing.T) {
	f := newFixture(testOrder())
	_, err := wallet.NewService(f.wallets).Credit(context.Background(), "u1", dec("150"), wallet.SourceMpesa, "top up", "")
	require.NoError(t, err)

	o, err := f.svc.PayWithWallet(context.Background(), "o1", "u1")
	require.NoError(t, err)

	assert.Equal(t, order.PaymentCompleted, o.Payment.Status)
	assert.Equal(t, MethodWallet, o.Payment.Method)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.True(t, f.wallets.wallets["u1"].Balance.Equal(dec("50")))
}

func TestPayWithWallet_InsufficientBalance(t *testing.T) {
	f := newFixture(testOrder())

	_, err := f.svc.PayWithWallet(context.Background(), "o1", "u1")
	require.ErrorIs(t, err, wallet.ErrInsufficientBalance)

	o := f.orders.orders["o1"]
	assert.Equal(t, order.PaymentPending, o.Payment.Status)
	assert.Equal(t, order.StatusPending, o.Status)
}

func TestRefund_CreditsWalletAndMarksRefunded(t *testing.T) {
	o := testOrder()
	o.Status = order.StatusConfirmed
	o.Payment.Status = order.PaymentCompleted
	f := newFixture(o)

	got, err := f.svc.Refund(context.Background(), "o1", "customer request", "admin")
	require.NoError(t, err)

	assert.Equal(t, order.StatusRefunded, got.Status)
	assert.Equal(t, order.PaymentRefunded, got.Payment.Status)
	assert.True(t, f.wallets.wallets["u1"].Balance.Equal(dec("100")), "full total credited back")
	require.Len(t, f.wallets.ledger, 1)
	assert.Equal(t, wallet.SourceRefund, f.wallets.ledger[0].Source)
}

func TestRefund_RequiresCompletedPayment(t *testing.T) {
	f := newFixture(testOrder())

	_, err := f.svc.Refund(context.Background(), "o1", "", "admin")
	require.ErrorIs(t, err, ErrNotPaid)
	assert.Empty(t, f.wallets.ledger)
}
