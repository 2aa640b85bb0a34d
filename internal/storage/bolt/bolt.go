// Package bolt stores coupons and usage counters in a single BoltDB file.
//
// Coupons live in the "coupons" bucket keyed by an insertion sequence so
// listing preserves creation order; the "codes" bucket maps a code to its
// sequence key. Usage counters live in "usage" keyed by userID 0x00 code.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/go-faster/errors"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/storage/record"
)

var (
	couponsBucket = []byte("coupons")
	codesBucket   = []byte("codes")
	usageBucket   = []byte("usage")
)

var (
	_ coupon.Store       = (*Store)(nil)
	_ coupon.UsageLedger = (*Store)(nil)
)

// Store implements coupon.Store and coupon.UsageLedger on BoltDB.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{couponsBucket, codesBucket, usageBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "create bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is still open.
func (s *Store) Ping(context.Context) error {
	return s.db.View(func(*bolt.Tx) error { return nil })
}

// Create stores c under a fresh sequence key.
func (s *Store) Create(_ context.Context, c *coupon.Coupon) error {
	data, err := record.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		codes := tx.Bucket(codesBucket)
		if codes.Get([]byte(c.Code)) != nil {
			return coupon.ErrCouponExists
		}

		coupons := tx.Bucket(couponsBucket)
		seq, err := coupons.NextSequence()
		if err != nil {
			return errors.Wrap(err, "next sequence")
		}
		key := seqKey(seq)
		if err := coupons.Put(key, data); err != nil {
			return errors.Wrapf(err, "put coupon %s", c.Code)
		}
		return codes.Put([]byte(c.Code), key)
	})
}

// Replace overwrites an existing coupon in place.
func (s *Store) Replace(_ context.Context, c *coupon.Coupon) error {
	data, err := record.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		key := tx.Bucket(codesBucket).Get([]byte(c.Code))
		if key == nil {
			return coupon.ErrCouponNotFound
		}
		return tx.Bucket(couponsBucket).Put(bytes.Clone(key), data)
	})
}

// Get returns the coupon stored under code.
func (s *Store) Get(_ context.Context, code string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(codesBucket).Get([]byte(code))
		if key == nil {
			return coupon.ErrCouponNotFound
		}
		var err error
		c, err = record.Unmarshal(tx.Bucket(couponsBucket).Get(key))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActive reads every coupon inside one read transaction.
func (s *Store) ListActive(_ context.Context) ([]coupon.Coupon, error) {
	out := []coupon.Coupon{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(couponsBucket).ForEach(func(_, v []byte) error {
			c, err := record.Unmarshal(v)
			if err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return out, nil
}

// GetUsage scans the user's counters.
func (s *Store) GetUsage(_ context.Context, userID string) (coupon.Usage, error) {
	var u coupon.Usage
	err := s.db.View(func(tx *bolt.Tx) error {
		u = readUsage(tx.Bucket(usageBucket), userID)
		return nil
	})
	if err != nil {
		return coupon.Usage{}, errors.Wrapf(err, "get usage for %s", userID)
	}
	return u, nil
}

// Record increments the counter for (userID, code). The limit is checked in
// the same write transaction; bolt runs writers one at a time.
func (s *Store) Record(_ context.Context, userID, code string, limit coupon.UsageLimit) error {
	key := append(usagePrefix(userID), code...)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usageBucket)
		if limit.Max != nil && !limit.Allows(readUsage(b, userID), code) {
			return coupon.ErrUsageLimitReached
		}
		var n uint64
		if v := b.Get(key); v != nil {
			n = binary.BigEndian.Uint64(v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n+1)
		return b.Put(key, buf)
	})
}

func readUsage(b *bolt.Bucket, userID string) coupon.Usage {
	u := coupon.Usage{ByCoupon: make(map[string]int)}
	prefix := usagePrefix(userID)
	cur := b.Cursor()
	for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
		n := int(binary.BigEndian.Uint64(v))
		u.ByCoupon[string(k[len(prefix):])] = n
		u.Total += n
	}
	return u
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func usagePrefix(userID string) []byte {
	p := make([]byte, 0, len(userID)+1)
	p = append(p, userID...)
	return append(p, 0)
}
