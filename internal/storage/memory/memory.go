// Package memory provides in-process implementations of coupon.Store and
// coupon.UsageLedger. Reads return deep copies, so a snapshot never observes
// later writes.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

var (
	_ coupon.Store       = (*CouponStore)(nil)
	_ coupon.UsageLedger = (*UsageLedger)(nil)
)

// CouponStore keeps coupons in insertion order.
type CouponStore struct {
	mu      sync.RWMutex
	coupons []coupon.Coupon
	index   map[string]int
}

// NewCouponStore returns an empty CouponStore.
func NewCouponStore() *CouponStore {
	return &CouponStore{index: make(map[string]int)}
}

// Create stores c. It returns coupon.ErrCouponExists if the code is taken.
func (s *CouponStore) Create(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[c.Code]; ok {
		return coupon.ErrCouponExists
	}
	s.index[c.Code] = len(s.coupons)
	s.coupons = append(s.coupons, c.Clone())
	return nil
}

// Replace overwrites the coupon stored under c.Code, keeping its position.
func (s *CouponStore) Replace(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[c.Code]
	if !ok {
		return coupon.ErrCouponNotFound
	}
	s.coupons[i] = c.Clone()
	return nil
}

// Get returns a copy of the coupon stored under code.
func (s *CouponStore) Get(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[code]
	if !ok {
		return nil, coupon.ErrCouponNotFound
	}
	c := s.coupons[i].Clone()
	return &c, nil
}

// ListActive returns copies of all coupons in insertion order.
func (s *CouponStore) ListActive(_ context.Context) ([]coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]coupon.Coupon, len(s.coupons))
	for i := range s.coupons {
		out[i] = s.coupons[i].Clone()
	}
	return out, nil
}

// UsageLedger counts redemptions per user and coupon.
type UsageLedger struct {
	mu    sync.Mutex
	usage map[string]coupon.Usage
}

// NewUsageLedger returns an empty UsageLedger.
func NewUsageLedger() *UsageLedger {
	return &UsageLedger{usage: make(map[string]coupon.Usage)}
}

// GetUsage returns the user's history; unknown users have none.
func (l *UsageLedger) GetUsage(_ context.Context, userID string) (coupon.Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.usage[userID]
	byCoupon := make(map[string]int, len(u.ByCoupon))
	for code, n := range u.ByCoupon {
		byCoupon[code] = n
	}
	return coupon.Usage{Total: u.Total, ByCoupon: byCoupon}, nil
}

// Record adds one redemption of code by userID if limit allows it.
func (l *UsageLedger) Record(_ context.Context, userID, code string, limit coupon.UsageLimit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.usage[userID]
	if !limit.Allows(u, code) {
		return coupon.ErrUsageLimitReached
	}
	l.usage[userID] = u.Add(code)
	return nil
}
