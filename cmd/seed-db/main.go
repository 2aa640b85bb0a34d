package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/storage/postgres"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return seedCoupons(ctx, postgres.NewCouponRepository(pool), demoCoupons(time.Now().UTC()))
}

type upserter interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

func seedCoupons(ctx context.Context, repo upserter, coupons []coupon.Coupon) error {
	slog.Info("seeding demo coupons", slog.Int("count", len(coupons)))

	for i := range coupons {
		c := &coupons[i]
		if err := coupon.ValidateCoupon(c); err != nil {
			return errors.Wrapf(err, "coupon %s", c.Code)
		}
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("description", c.Description))
	}

	return nil
}

// demoCoupons returns a small set valid for a year from now.
func demoCoupons(now time.Time) []coupon.Coupon {
	start := now.Truncate(24 * time.Hour)
	end := start.AddDate(1, 0, 0)
	intPtr := func(v int) *int { return &v }
	amount := func(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromInt(v)) }

	return []coupon.Coupon{
		{
			Code:        "FLAT100",
			Description: "100 off any order",
			Discount:    coupon.Flat{Value: decimal.NewFromInt(100)},
			StartDate:   start,
			EndDate:     end,
		},
		{
			Code:              "WELCOME10",
			Description:       "10% off your first order, up to 200",
			Discount:          coupon.Percent{Rate: decimal.NewFromInt(10), Cap: amount(200)},
			StartDate:         start,
			EndDate:           end,
			UsageLimitPerUser: intPtr(1),
			Eligibility:       coupon.Eligibility{FirstOrderOnly: true},
		},
		{
			Code:        "GOLD5",
			Description: "5% off for gold and platinum members",
			Discount:    coupon.Percent{Rate: decimal.NewFromInt(5)},
			StartDate:   start,
			EndDate:     end,
			Eligibility: coupon.Eligibility{
				AllowedUserTiers: []string{"GOLD", "PLATINUM"},
				MinLifetimeSpend: amount(5000),
			},
		},
		{
			Code:        "ELECTRO250",
			Description: "250 off electronics orders over 2000",
			Discount:    coupon.Flat{Value: decimal.NewFromInt(250)},
			StartDate:   start,
			EndDate:     end,
			Eligibility: coupon.Eligibility{
				ApplicableCategories: []string{"electronics"},
				ExcludedCategories:   []string{"gift_cards"},
				MinCartValue:         amount(2000),
				AllowedCountries:     []string{"IN"},
			},
		},
		{
			Code:        "BULK3",
			Description: "3% off orders of 5 items or more",
			Discount:    coupon.Percent{Rate: decimal.NewFromInt(3)},
			StartDate:   start,
			EndDate:     end,
			Eligibility: coupon.Eligibility{
				MinItemsCount:   intPtr(5),
				MinOrdersPlaced: intPtr(2),
			},
		},
	}
}
