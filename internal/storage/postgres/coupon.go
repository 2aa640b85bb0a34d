package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const couponColumns = `code, description, discount_type, discount_value, max_discount_amount,
	start_date, end_date, usage_limit_per_user,
	allowed_user_tiers, min_lifetime_spend, min_orders_placed, first_order_only,
	allowed_countries, min_cart_value, applicable_categories, excluded_categories, min_items_count`

const (
	insertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (code) DO NOTHING`

	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (code) DO UPDATE SET
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			max_discount_amount = EXCLUDED.max_discount_amount,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			usage_limit_per_user = EXCLUDED.usage_limit_per_user,
			allowed_user_tiers = EXCLUDED.allowed_user_tiers,
			min_lifetime_spend = EXCLUDED.min_lifetime_spend,
			min_orders_placed = EXCLUDED.min_orders_placed,
			first_order_only = EXCLUDED.first_order_only,
			allowed_countries = EXCLUDED.allowed_countries,
			min_cart_value = EXCLUDED.min_cart_value,
			applicable_categories = EXCLUDED.applicable_categories,
			excluded_categories = EXCLUDED.excluded_categories,
			min_items_count = EXCLUDED.min_items_count,
			updated_at = NOW()`

	replaceCouponSQL = `UPDATE coupons SET
			description = $2, discount_type = $3, discount_value = $4, max_discount_amount = $5,
			start_date = $6, end_date = $7, usage_limit_per_user = $8,
			allowed_user_tiers = $9, min_lifetime_spend = $10, min_orders_placed = $11,
			first_order_only = $12, allowed_countries = $13, min_cart_value = $14,
			applicable_categories = $15, excluded_categories = $16, min_items_count = $17,
			updated_at = NOW()
		WHERE code = $1`

	getCouponSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY seq`
)

var _ coupon.Store = (*CouponRepository)(nil)

// CouponRepository implements coupon.Store backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Create inserts c. Returns coupon.ErrCouponExists when the code is taken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, insertCouponSQL, couponArgs(c)...)
	if err != nil {
		return fmt.Errorf("inserting coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrCouponExists
	}
	return nil
}

// Replace updates the coupon with c.Code. Returns coupon.ErrCouponNotFound
// when no such coupon exists.
func (r *CouponRepository) Replace(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, replaceCouponSQL, couponArgs(c)...)
	if err != nil {
		return fmt.Errorf("replacing coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrCouponNotFound
	}
	return nil
}

// Upsert inserts c or overwrites the coupon with the same code. Used by bulk
// loaders where the latest definition wins.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	if _, err := r.pool.Exec(ctx, upsertCouponSQL, couponArgs(c)...); err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// UpsertBatch upserts coupons in a single round trip.
func (r *CouponRepository) UpsertBatch(ctx context.Context, coupons []coupon.Coupon) error {
	batch := &pgx.Batch{}
	for i := range coupons {
		batch.Queue(upsertCouponSQL, couponArgs(&coupons[i])...)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d coupons: %w", len(coupons), err)
	}
	return nil
}

// Get returns the coupon stored under code (case-sensitive).
func (r *CouponRepository) Get(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, fmt.Errorf("getting coupon %q: %w", code, err)
	}
	return &c, nil
}

// ListActive returns all coupons in insertion order from a single statement.
func (r *CouponRepository) ListActive(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}

	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return coupons, nil
}

func couponArgs(c *coupon.Coupon) []any {
	e := &c.Eligibility
	return []any{
		c.Code,
		c.Description,
		string(c.Discount.Type()),
		coupon.DiscountValue(c.Discount),
		coupon.DiscountCap(c.Discount),
		c.StartDate,
		c.EndDate,
		c.UsageLimitPerUser,
		nonNil(e.AllowedUserTiers),
		e.MinLifetimeSpend,
		e.MinOrdersPlaced,
		e.FirstOrderOnly,
		nonNil(e.AllowedCountries),
		e.MinCartValue,
		nonNil(e.ApplicableCategories),
		nonNil(e.ExcludedCategories),
		e.MinItemsCount,
	}
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		value        decimal.Decimal
		maxDiscount  decimal.NullDecimal
		start, end   time.Time
		usageLimit   *int32
		minOrders    *int32
		minItems     *int32
	)
	e := &c.Eligibility
	err := row.Scan(
		&c.Code, &c.Description, &discountType, &value, &maxDiscount,
		&start, &end, &usageLimit,
		&e.AllowedUserTiers, &e.MinLifetimeSpend, &minOrders, &e.FirstOrderOnly,
		&e.AllowedCountries, &e.MinCartValue, &e.ApplicableCategories, &e.ExcludedCategories, &minItems,
	)
	if err != nil {
		return coupon.Coupon{}, err
	}

	c.Discount, err = coupon.NewDiscount(coupon.DiscountType(discountType), value, maxDiscount)
	if err != nil {
		return coupon.Coupon{}, fmt.Errorf("coupon %q: %w", c.Code, err)
	}
	c.StartDate = start
	c.EndDate = end
	c.UsageLimitPerUser = intPtr(usageLimit)
	e.MinOrdersPlaced = intPtr(minOrders)
	e.MinItemsCount = intPtr(minItems)
	return c, nil
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
