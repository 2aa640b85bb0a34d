package coupon

import (
	"github.com/go-faster/errors"
)

// UsageScope selects which redemption count a usage limit is compared with.
type UsageScope string

const (
	// ScopePerCoupon counts only redemptions of the coupon being checked.
	ScopePerCoupon UsageScope = "coupon"
	// ScopePerUser counts every redemption the user made, across all coupons.
	ScopePerUser UsageScope = "user"
)

// ParseUsageScope validates a configured scope name. Empty means ScopePerCoupon.
func ParseUsageScope(s string) (UsageScope, error) {
	switch UsageScope(s) {
	case "", ScopePerCoupon:
		return ScopePerCoupon, nil
	case ScopePerUser:
		return ScopePerUser, nil
	default:
		return "", errors.Errorf("unknown usage scope %q", s)
	}
}

// Usage is one user's redemption history.
type Usage struct {
	Total    int
	ByCoupon map[string]int
}

// Count returns the redemptions relevant to code under scope.
func (u Usage) Count(scope UsageScope, code string) int {
	if scope == ScopePerUser {
		return u.Total
	}
	return u.ByCoupon[code]
}

// UsageLimit bounds a redemption. A nil Max means unlimited.
type UsageLimit struct {
	Max   *int
	Scope UsageScope
}

// Unlimited records without a bound.
var Unlimited = UsageLimit{}

// Allows reports whether one more redemption of code fits within the limit.
func (l UsageLimit) Allows(u Usage, code string) bool {
	return l.Max == nil || u.Count(l.Scope, code) < *l.Max
}

// Add returns a copy of u with one more redemption of code.
func (u Usage) Add(code string) Usage {
	out := Usage{Total: u.Total + 1, ByCoupon: make(map[string]int, len(u.ByCoupon)+1)}
	for k, v := range u.ByCoupon {
		out.ByCoupon[k] = v
	}
	out.ByCoupon[code]++
	return out
}

// Validate rejects negative counts.
func (u Usage) Validate() error {
	if u.Total < 0 {
		return &ValidationError{Field: "usageHistory", Reason: "must not be negative"}
	}
	for code, n := range u.ByCoupon {
		if n < 0 {
			return &ValidationError{Field: "couponUsage." + code, Reason: "must not be negative"}
		}
	}
	return nil
}
