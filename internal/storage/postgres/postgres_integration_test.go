//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "coupons",
				"POSTGRES_PASSWORD": "coupons",
				"POSTGRES_DB":       "coupons",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() { _ = pg.Terminate(context.Background()) }()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://coupons:coupons@%s:%s/coupons?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	return m.Run()
}

func truncate(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `TRUNCATE coupon_usage, coupons RESTART IDENTITY`)
	require.NoError(t, err)
}

func testCoupon(code string) *coupon.Coupon {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := 1
	return &coupon.Coupon{
		Code:              code,
		Description:       "10% off, max 200",
		Discount:          coupon.Percent{Rate: decimal.NewFromInt(10), Cap: decimal.NewNullDecimal(decimal.NewFromInt(200))},
		StartDate:         start,
		EndDate:           start.AddDate(1, 0, 0),
		UsageLimitPerUser: &limit,
		Eligibility: coupon.Eligibility{
			AllowedCountries: []string{"IN"},
			MinCartValue:     decimal.NewNullDecimal(decimal.RequireFromString("999.99")),
		},
	}
}

func TestCouponRepository(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := NewCouponRepository(testPool)

	require.NoError(t, repo.Create(ctx, testCoupon("ZED")))
	require.NoError(t, repo.Create(ctx, testCoupon("ALPHA")))
	assert.True(t, errors.Is(repo.Create(ctx, testCoupon("ZED")), coupon.ErrCouponExists))

	got, err := repo.Get(ctx, "ZED")
	require.NoError(t, err)
	p, ok := got.Discount.(coupon.Percent)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(200).Equal(p.Cap.Decimal))
	assert.Equal(t, 1, *got.UsageLimitPerUser)
	assert.True(t, decimal.RequireFromString("999.99").Equal(got.Eligibility.MinCartValue.Decimal))
	assert.False(t, got.Eligibility.MinLifetimeSpend.Valid)
	assert.Nil(t, got.Eligibility.MinItemsCount)

	_, err = repo.Get(ctx, "zed")
	assert.True(t, errors.Is(err, coupon.ErrCouponNotFound))

	replacement := testCoupon("ZED")
	replacement.Discount = coupon.Flat{Value: decimal.NewFromInt(50)}
	require.NoError(t, repo.Replace(ctx, replacement))
	assert.True(t, errors.Is(repo.Replace(ctx, testCoupon("NOPE")), coupon.ErrCouponNotFound))

	list, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ZED", list[0].Code)
	assert.Equal(t, coupon.DiscountFlat, list[0].Discount.Type())
	assert.Equal(t, "ALPHA", list[1].Code)

	require.NoError(t, repo.UpsertBatch(ctx, []coupon.Coupon{*testCoupon("ALPHA"), *testCoupon("BETA")}))
	list, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestUsageRepository(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	require.NoError(t, NewCouponRepository(testPool).Create(ctx, testCoupon("A")))
	require.NoError(t, NewCouponRepository(testPool).Create(ctx, testCoupon("B")))
	ledger := NewUsageRepository(testPool)

	require.NoError(t, ledger.Record(ctx, "u1", "A", coupon.Unlimited))
	require.NoError(t, ledger.Record(ctx, "u1", "A", coupon.Unlimited))
	require.NoError(t, ledger.Record(ctx, "u1", "B", coupon.Unlimited))

	u, err := ledger.GetUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, u.Total)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, u.ByCoupon)

	u, err = ledger.GetUsage(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, u.Total)
}

func TestUsageRepository_RecordWithinLimit(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := NewCouponRepository(testPool)
	for _, code := range []string{"ONCE", "B", "C"} {
		require.NoError(t, repo.Create(ctx, testCoupon(code)))
	}
	ledger := NewUsageRepository(testPool)
	one, two := 1, 2

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Record(ctx, "u1", "ONCE", coupon.UsageLimit{Max: &one, Scope: coupon.ScopePerCoupon})
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.ErrorIs(t, err, coupon.ErrUsageLimitReached)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted.Load())

	zero := 0
	err := ledger.Record(ctx, "u2", "ONCE", coupon.UsageLimit{Max: &zero, Scope: coupon.ScopePerCoupon})
	assert.ErrorIs(t, err, coupon.ErrUsageLimitReached)

	perUser := coupon.UsageLimit{Max: &two, Scope: coupon.ScopePerUser}
	require.NoError(t, ledger.Record(ctx, "u1", "B", perUser))
	assert.ErrorIs(t, ledger.Record(ctx, "u1", "C", perUser), coupon.ErrUsageLimitReached)

	u, err := ledger.GetUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ONCE": 1, "B": 1}, u.ByCoupon)
}
