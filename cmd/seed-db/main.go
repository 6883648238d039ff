// Command seed-db loads demo catalog data: products from a JSON file plus
// a fixed set of delivery zones and promo coupons. Safe to re-run; every
// write is an upsert.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/delivery"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/product"
	"github.com/Daninc24/dropshipping-sub001/internal/repository"
)

type productJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Image         string          `json:"image"`
	Category      string          `json:"category"`
	StockQuantity int             `json:"stock_quantity"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedZones(ctx, repository.NewZoneRepository(pool)); err != nil {
		return errors.Wrap(err, "seed zones")
	}
	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, &product.Product{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Price:         p.Price,
			Image:         p.Image,
			Category:      p.Category,
			StockQuantity: p.StockQuantity,
			Active:        true,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedZones(ctx context.Context, repo *repository.ZoneRepository) error {
	slog.Info("seeding delivery zones")

	zones := []delivery.Zone{
		{
			ID:        "nairobi-cbd",
			Name:      "Nairobi CBD",
			Fee:       decimal.NewFromInt(150),
			FreeAbove: decimal.NewFromInt(5000),
			MinDays:   1,
			MaxDays:   1,
			Active:    true,
		},
		{
			ID:        "nairobi-metro",
			Name:      "Nairobi Metro",
			Fee:       decimal.NewFromInt(250),
			FreeAbove: decimal.NewFromInt(5000),
			MinDays:   1,
			MaxDays:   2,
			Active:    true,
		},
		{
			ID:      "upcountry",
			Name:    "Upcountry",
			Fee:     decimal.NewFromInt(400),
			MinDays: 2,
			MaxDays: 5,
			Active:  true,
		},
	}

	for i := range zones {
		if err := repo.Upsert(ctx, &zones[i]); err != nil {
			return errors.Wrapf(err, "upsert zone %s", zones[i].ID)
		}
		slog.Info("upserted zone", slog.String("id", zones[i].ID), slog.String("name", zones[i].Name))
	}
	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding demo coupons")

	now := time.Now()
	coupons := []coupon.Coupon{
		{
			Code:        "KARIBU10",
			Kind:        coupon.KindPercentage,
			Value:       decimal.NewFromInt(10),
			MinAmount:   decimal.NewFromInt(1000),
			MaxDiscount: decimal.NewFromInt(500),
			UserLimit:   1,
			StartsAt:    now,
			EndsAt:      now.AddDate(1, 0, 0),
			Active:      true,
			Description: "Karibu: 10% off your first order over 1000",
		},
		{
			Code:        "SOKO200",
			Kind:        coupon.KindFixed,
			Value:       decimal.NewFromInt(200),
			MinAmount:   decimal.NewFromInt(2000),
			StartsAt:    now,
			EndsAt:      now.AddDate(0, 3, 0),
			Active:      true,
			Description: "200 off orders over 2000",
		},
	}

	for i := range coupons {
		if err := repo.Upsert(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", coupons[i].Code)
		}
		slog.Info("upserted coupon", slog.String("code", coupons[i].Code))
	}
	return nil
}
