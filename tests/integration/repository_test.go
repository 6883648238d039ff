// Package integration exercises the PostgreSQL repositories against a
// real database in a throwaway container. Run with -short to skip.
package integration

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/cart"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/delivery"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/order"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/payment"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/product"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/wallet"
	"github.com/Daninc24/dropshipping-sub001/internal/repository"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("soko"),
		tcpostgres.WithUsername("soko"),
		tcpostgres.WithPassword("soko"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = repository.NewPool(ctx, connStr)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	if err := repository.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	code := m.Run()

	pool.Close()
	if err := testcontainers.TerminateContainer(container); err != nil {
		log.Printf("terminate container: %v", err)
	}
	os.Exit(code)
}

func newProduct(stock int) *product.Product {
	return &product.Product{
		ID:            uuid.New().String(),
		Name:          "Test Product",
		Price:         decimal.NewFromInt(500),
		StockQuantity: stock,
		Active:        true,
	}
}

func TestProductRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProductRepository(pool)

	p := newProduct(10)
	p.Description = "round trip"
	p.Category = "test"
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, got.Price.Equal(p.Price))
	assert.Equal(t, 10, got.StockQuantity)

	require.NoError(t, repo.Deactivate(ctx, p.ID))
	_, err = repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestProductRepository_AdjustStockGuard(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProductRepository(pool)

	p := newProduct(3)
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.AdjustStock(ctx, p.ID, -2, 2))

	err := repo.AdjustStock(ctx, p.ID, -2, 2)
	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StockQuantity)
	assert.Equal(t, 2, got.TotalSales)
}

func TestCartRepository_SaveAndVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewCartRepository(pool)
	userID := uuid.New().String()

	c, err := repo.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, c.Items)

	c.AddItem(cart.Item{
		ProductID: "p1",
		Name:      "Tee",
		Price:     decimal.NewFromInt(899),
		Quantity:  2,
		Variants:  map[string]string{"size": "M"},
	})
	c.ApplyCoupon(&coupon.Coupon{
		Code:  "TEN",
		Kind:  coupon.KindPercentage,
		Value: decimal.NewFromInt(10),
	})
	require.NoError(t, repo.Save(ctx, c))

	got, err := repo.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "M", got.Items[0].Variants["size"])
	require.NotNil(t, got.Coupon)
	assert.Equal(t, "TEN", got.Coupon.Code)
	assert.True(t, got.DiscountAmount.Equal(decimal.NewFromFloat(179.80)))

	// A save with a stale version must fail.
	stale := *got
	stale.Version = got.Version - 1
	assert.ErrorIs(t, repo.Save(ctx, &stale), cart.ErrVersionConflict)
}

func TestCouponRepository_UsageLedger(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewCouponRepository(pool)

	now := time.Now().UTC()
	cp := &coupon.Coupon{
		Code:     "ITEST" + uuid.New().String()[:8],
		Kind:     coupon.KindFixed,
		Value:    decimal.NewFromInt(100),
		StartsAt: now,
		EndsAt:   now.AddDate(0, 1, 0),
		Active:   true,
		Version:  1,
	}
	require.NoError(t, repo.Create(ctx, cp))

	got, err := repo.FindByCode(ctx, cp.Code)
	require.NoError(t, err)

	use := coupon.Usage{
		CouponCode:     got.Code,
		UserID:         "u1",
		OrderAmount:    decimal.NewFromInt(1000),
		DiscountAmount: decimal.NewFromInt(100),
		UsedAt:         now,
	}
	require.NoError(t, repo.AppendUsage(ctx, use, got.Version))

	// Same version again conflicts: the counter bump advanced it.
	assert.ErrorIs(t, repo.AppendUsage(ctx, use, got.Version), coupon.ErrVersionConflict)

	n, err := repo.CountUserUsage(ctx, got.Code, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := repo.FindByCode(ctx, got.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, after.UsageCount)
}

func newOrder(userID string) *order.Order {
	now := time.Now().UTC().Truncate(time.Millisecond)
	o := &order.Order{
		ID:          uuid.New().String(),
		OrderNumber: "ORD-" + uuid.New().String()[:8],
		UserID:      userID,
		Items: []order.Item{
			{ProductID: "p1", Name: "Tee", Price: decimal.NewFromInt(899), Quantity: 1},
		},
		ShippingAddress: order.Address{FullName: "Jane", City: "Nairobi", ZoneID: "nairobi-cbd"},
		BillingAddress:  order.Address{FullName: "Jane", City: "Nairobi"},
		Payment:         order.PaymentInfo{Method: "mpesa", Status: order.PaymentPending},
		Status:          order.StatusPending,
		History: []order.HistoryEntry{
			{Status: order.StatusPending, At: now, Note: "order placed"},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.ComputeTotals()
	return o
}

func TestOrderRepository_RoundTripAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOrderRepository(pool)
	userID := uuid.New().String()

	o := newOrder(userID)
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, got.OrderNumber)
	require.Len(t, got.History, 1)
	assert.Equal(t, order.StatusPending, got.History[0].Status)

	got.Status = order.StatusConfirmed
	got.History = append(got.History, order.HistoryEntry{
		Status: order.StatusConfirmed, At: time.Now().UTC(), Actor: "admin",
	})
	require.NoError(t, repo.Update(ctx, got))
	assert.Equal(t, 2, got.Version)

	// Stale writer loses.
	stale := *got
	stale.Version = 1
	assert.ErrorIs(t, repo.Update(ctx, &stale), order.ErrVersionConflict)

	orders, total, err := repo.ListByUser(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)

	require.NoError(t, repo.SoftDelete(ctx, o.ID))
	_, err = repo.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_DeliverySubdocument(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOrderRepository(pool)

	o := newOrder(uuid.New().String())
	require.NoError(t, repo.Create(ctx, o))

	now := time.Now().UTC().Truncate(time.Millisecond)
	o.Delivery = &order.DeliveryInfo{
		AgentID:    "agent-1",
		ZoneID:     "nairobi-cbd",
		Status:     delivery.StatusAssigned,
		AssignedAt: now,
	}
	require.NoError(t, repo.Update(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Delivery)
	assert.Equal(t, "agent-1", got.Delivery.AgentID)
	assert.Equal(t, delivery.StatusAssigned, got.Delivery.Status)
}

func TestPaymentIntentRepository_Idempotency(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPaymentIntentRepository(pool)

	in := &payment.Intent{
		CheckoutRequestID: "ws_CO_" + uuid.New().String(),
		MerchantRequestID: "mr-1",
		OrderID:           uuid.New().String(),
		UserID:            "u1",
		Phone:             "254712345678",
		Amount:            decimal.NewFromInt(1000),
		Status:            payment.StatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, in))

	res := payment.Result{
		Status:     payment.StatusCompleted,
		ResultCode: 0,
		Receipt:    "RCP123",
	}
	got, err := repo.MarkProcessed(ctx, in.CheckoutRequestID, res)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)

	// The duplicate callback must not claim the intent again.
	_, err = repo.MarkProcessed(ctx, in.CheckoutRequestID, res)
	assert.ErrorIs(t, err, payment.ErrAlreadyProcessed)

	_, err = repo.MarkProcessed(ctx, "ws_CO_unknown", res)
	assert.ErrorIs(t, err, payment.ErrIntentNotFound)
}

func TestWalletRepository_ApplyGuards(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewWalletRepository(pool)
	userID := uuid.New().String()

	w, err := repo.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())

	credit := wallet.Transaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      wallet.TypeCredit,
		Amount:    decimal.NewFromInt(500),
		Source:    wallet.SourceCashback,
		CreatedAt: time.Now().UTC(),
	}
	w, err = repo.Apply(ctx, credit, w.Version)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(500)))

	// Overdraft is rejected by the balance guard.
	debit := credit
	debit.ID = uuid.New().String()
	debit.Type = wallet.TypeDebit
	debit.Amount = decimal.NewFromInt(600)
	_, err = repo.Apply(ctx, debit, w.Version)
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)

	// Stale version is a conflict, not an overdraft.
	debit.ID = uuid.New().String()
	debit.Amount = decimal.NewFromInt(100)
	_, err = repo.Apply(ctx, debit, w.Version-1)
	assert.ErrorIs(t, err, wallet.ErrVersionConflict)

	txs, total, err := repo.ListTransactions(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, txs, 1)
	assert.Equal(t, wallet.TypeCredit, txs[0].Type)
}

func TestAgentRepository_VersionedUpdate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewAgentRepository(pool)

	a := &delivery.Agent{
		ID:        uuid.New().String(),
		UserID:    uuid.New().String(),
		Name:      "Otieno",
		Phone:     "254701234567",
		ZoneID:    "nairobi-cbd",
		Status:    delivery.AgentPending,
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, a))

	a.Status = delivery.AgentActive
	a.Available = true
	require.NoError(t, repo.Update(ctx, a))
	assert.Equal(t, 2, a.Version)

	stale := *a
	stale.Version = 1
	assert.ErrorIs(t, repo.Update(ctx, &stale), delivery.ErrVersionConflict)

	agents, total, err := repo.List(ctx, delivery.AgentActive, 50, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, 1)
	found := false
	for _, got := range agents {
		if got.ID == a.ID {
			found = true
			assert.True(t, got.Available)
		}
	}
	assert.True(t, found)
}
