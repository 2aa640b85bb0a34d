package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	getUsageSQL = `SELECT coupon_code, usage_count FROM coupon_usage WHERE user_id = $1`

	recordUsageSQL = `INSERT INTO coupon_usage (user_id, coupon_code, usage_count, last_used_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (user_id, coupon_code)
		DO UPDATE SET usage_count = coupon_usage.usage_count + 1, last_used_at = NOW()`

	// The conflict branch re-reads the locked row, so the limit holds under
	// concurrent redemptions of the same coupon.
	recordWithinSQL = `INSERT INTO coupon_usage (user_id, coupon_code, usage_count, last_used_at)
		SELECT $1, $2, 1, NOW() WHERE $3::INTEGER > 0
		ON CONFLICT (user_id, coupon_code)
		DO UPDATE SET usage_count = coupon_usage.usage_count + 1, last_used_at = NOW()
		WHERE coupon_usage.usage_count < $3::INTEGER`

	lockUserSQL  = `SELECT pg_advisory_xact_lock(hashtext($1))`
	userTotalSQL = `SELECT COALESCE(SUM(usage_count), 0) FROM coupon_usage WHERE user_id = $1`
)

var _ coupon.UsageLedger = (*UsageRepository)(nil)

// UsageRepository implements coupon.UsageLedger backed by PostgreSQL.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

type usageRow struct {
	Code  string
	Count int32
}

// GetUsage returns all of the user's counters.
func (r *UsageRepository) GetUsage(ctx context.Context, userID string) (coupon.Usage, error) {
	rows, err := r.pool.Query(ctx, getUsageSQL, userID)
	if err != nil {
		return coupon.Usage{}, fmt.Errorf("getting usage for %q: %w", userID, err)
	}

	counts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[usageRow])
	if err != nil {
		return coupon.Usage{}, fmt.Errorf("getting usage for %q: %w", userID, err)
	}

	u := coupon.Usage{ByCoupon: make(map[string]int, len(counts))}
	for _, c := range counts {
		u.ByCoupon[c.Code] = int(c.Count)
		u.Total += int(c.Count)
	}
	return u, nil
}

// Record increments the (userID, code) counter unless limit is exhausted.
func (r *UsageRepository) Record(ctx context.Context, userID, code string, limit coupon.UsageLimit) error {
	var err error
	switch {
	case limit.Max == nil:
		_, err = r.pool.Exec(ctx, recordUsageSQL, userID, code)
	case limit.Scope == coupon.ScopePerUser:
		err = r.recordWithinUserTotal(ctx, userID, code, *limit.Max)
	default:
		var tag pgconn.CommandTag
		tag, err = r.pool.Exec(ctx, recordWithinSQL, userID, code, int32(*limit.Max))
		if err == nil && tag.RowsAffected() == 0 {
			return coupon.ErrUsageLimitReached
		}
	}
	if err != nil {
		if errors.Is(err, coupon.ErrUsageLimitReached) {
			return err
		}
		return fmt.Errorf("recording usage of %q for %q: %w", code, userID, err)
	}
	return nil
}

// recordWithinUserTotal serializes a user's redemptions on an advisory lock
// held until commit, since the limit spans several rows.
func (r *UsageRepository) recordWithinUserTotal(ctx context.Context, userID, code string, maxUses int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockUserSQL, userID); err != nil {
			return err
		}
		var total int64
		if err := tx.QueryRow(ctx, userTotalSQL, userID).Scan(&total); err != nil {
			return err
		}
		if total >= int64(maxUses) {
			return coupon.ErrUsageLimitReached
		}
		_, err := tx.Exec(ctx, recordUsageSQL, userID, code)
		return err
	})
}
