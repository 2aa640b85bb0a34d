// Package rediscache wraps a coupon.Store with a Redis read-through cache of
// the full ListActive snapshot.
//
// Snapshots are stored under a versioned key. Writers bump the version after
// writing through, and readers note the version before loading from the
// wrapped store, so a fill that raced a write lands under a version nobody
// reads any more.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/storage/record"
)

// DefaultKey prefixes the snapshot and version keys unless overridden.
const DefaultKey = "coupons:active"

// orphanTTL is the snapshot lifetime when no ttl is configured, so retired
// versions still expire.
const orphanTTL = 24 * time.Hour

var _ coupon.Store = (*Store)(nil)

// Store caches ListActive results of the wrapped store. Writes go to the
// wrapped store first and then retire the cached snapshot.
type Store struct {
	next   coupon.Store
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewClient parses url and returns a connected client.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// New wraps next. A zero ttl keeps snapshots until the next write, and at
// most a day.
func New(next coupon.Store, client *redis.Client, key string, ttl time.Duration) *Store {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = orphanTTL
	}
	return &Store{next: next, client: client, key: key, ttl: ttl}
}

func (s *Store) versionKey() string {
	return s.key + ":version"
}

func (s *Store) snapshotKey(version int64) string {
	return fmt.Sprintf("%s:v%d", s.key, version)
}

// Create writes through and invalidates the snapshot.
func (s *Store) Create(ctx context.Context, c *coupon.Coupon) error {
	if err := s.next.Create(ctx, c); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// Replace writes through and invalidates the snapshot.
func (s *Store) Replace(ctx context.Context, c *coupon.Coupon) error {
	if err := s.next.Replace(ctx, c); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// Get is not cached.
func (s *Store) Get(ctx context.Context, code string) (*coupon.Coupon, error) {
	return s.next.Get(ctx, code)
}

// ListActive serves the cached snapshot when present. Cache read failures
// fall back to the wrapped store; only its errors are returned.
func (s *Store) ListActive(ctx context.Context) ([]coupon.Coupon, error) {
	lg := zctx.From(ctx)

	version, err := s.client.Get(ctx, s.versionKey()).Int64()
	switch {
	case err == nil, errors.Is(err, redis.Nil):
	default:
		lg.Warn("Coupon cache version read failed", zap.Error(err))
		return s.next.ListActive(ctx)
	}
	key := s.snapshotKey(version)

	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		coupons, err := record.UnmarshalList(data)
		if err == nil {
			return coupons, nil
		}
		lg.Warn("Discarding unreadable coupon cache", zap.Error(err))
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Coupon cache read failed", zap.Error(err))
	}

	coupons, err := s.next.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := record.MarshalList(coupons); err != nil {
		lg.Warn("Encode coupon cache", zap.Error(err))
	} else if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		lg.Warn("Coupon cache write failed", zap.Error(err))
	}
	return coupons, nil
}

func (s *Store) invalidate(ctx context.Context) error {
	version, err := s.client.Incr(ctx, s.versionKey()).Result()
	if err != nil {
		return errors.Wrap(err, "invalidate coupon cache")
	}
	// A fill racing this write may still recreate the old key; it expires
	// with the ttl.
	if err := s.client.Del(ctx, s.snapshotKey(version-1)).Err(); err != nil {
		zctx.From(ctx).Warn("Drop retired coupon cache", zap.Error(err))
	}
	return nil
}
