package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/storage/bolt"
	"github.com/xenking/coupon-engine/internal/storage/memory"
	"github.com/xenking/coupon-engine/internal/storage/postgres"
	"github.com/xenking/coupon-engine/internal/storage/rediscache"
	"github.com/xenking/coupon-engine/pkg/health"
)

// backend is the storage selected by configuration.
type backend struct {
	store   coupon.Store
	ledger  coupon.UsageLedger
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend opens the configured driver, registers its readiness checks
// and, when Redis is configured, fronts the store with the list cache.
func openBackend(ctx context.Context, lg *zap.Logger, cfg *Config, hc *health.Health) (*backend, error) {
	b := &backend{}

	switch cfg.Storage.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		b.closers = append(b.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			b.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		hc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
		b.store = postgres.NewCouponRepository(pool)
		b.ledger = postgres.NewUsageRepository(pool)
	case DriverBolt:
		db, err := bolt.Open(cfg.Storage.BoltPath)
		if err != nil {
			return nil, errors.Wrap(err, "open bolt")
		}
		b.closers = append(b.closers, func() {
			if err := db.Close(); err != nil {
				lg.Warn("Close bolt", zap.Error(err))
			}
		})
		hc.AddReadinessCheck("bolt", time.Second, db.Ping)
		b.store = db
		b.ledger = db
	default:
		b.store = memory.NewCouponStore()
		b.ledger = memory.NewUsageLedger()
	}
	lg.Info("Storage ready", zap.String("driver", cfg.Storage.Driver))

	if cfg.Redis.URL != "" {
		client, err := rediscache.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			b.Close()
			return nil, errors.Wrap(err, "connect redis")
		}
		b.closers = append(b.closers, func() {
			if err := client.Close(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		})
		hc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		b.store = rediscache.New(b.store, client, rediscache.DefaultKey, cfg.Redis.TTL)
		lg.Info("Coupon list cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}

	return b, nil
}
