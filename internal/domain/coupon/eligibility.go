package coupon

import (
	"slices"
	"time"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/customer"
)

// Reason names the first eligibility check a coupon failed.
type Reason string

// Reasons, in the order the checks run.
const (
	ReasonNone                 Reason = ""
	ReasonNotStarted           Reason = "not_started"
	ReasonExpired              Reason = "expired"
	ReasonUsageLimitReached    Reason = "usage_limit_reached"
	ReasonUserTier             Reason = "user_tier_not_allowed"
	ReasonLifetimeSpend        Reason = "lifetime_spend_too_low"
	ReasonOrdersPlaced         Reason = "orders_placed_too_low"
	ReasonNotFirstOrder        Reason = "not_first_order"
	ReasonCountry              Reason = "country_not_allowed"
	ReasonCartValue            Reason = "cart_value_too_low"
	ReasonNoApplicableCategory Reason = "no_applicable_category"
	ReasonExcludedCategory     Reason = "excluded_category_in_cart"
	ReasonItemsCount           Reason = "items_count_too_low"
)

// Subject is everything a coupon is checked against in one request. Cart
// derived values are computed once by NewSubject and shared by every coupon.
type Subject struct {
	Now   time.Time
	User  customer.Context
	Cart  cart.Summary
	Usage Usage
}

// NewSubject summarizes c for evaluation at now.
func NewSubject(now time.Time, user customer.Context, c cart.Cart, usage Usage) Subject {
	return Subject{Now: now, User: user, Cart: cart.Summarize(c), Usage: usage}
}

// Evaluator checks coupons against a Subject. It holds no mutable state.
type Evaluator struct {
	scope UsageScope
}

// NewEvaluator returns an Evaluator that compares usage limits under scope.
func NewEvaluator(scope UsageScope) Evaluator {
	return Evaluator{scope: scope}
}

// IsEligible reports whether c applies to s and, if not, which check failed first.
func (e Evaluator) IsEligible(c *Coupon, s *Subject) (bool, Reason) {
	r := e.check(c, s)
	return r == ReasonNone, r
}

func (e Evaluator) check(c *Coupon, s *Subject) Reason {
	if s.Now.Before(c.StartDate) {
		return ReasonNotStarted
	}
	if s.Now.After(c.EndDate) {
		return ReasonExpired
	}

	if c.UsageLimitPerUser != nil && s.Usage.Count(e.scope, c.Code) >= *c.UsageLimitPerUser {
		return ReasonUsageLimitReached
	}

	el := &c.Eligibility
	u := &s.User

	if len(el.AllowedUserTiers) > 0 && !slices.Contains(el.AllowedUserTiers, u.Tier) {
		return ReasonUserTier
	}
	if el.MinLifetimeSpend.Valid && u.LifetimeSpend.LessThan(el.MinLifetimeSpend.Decimal) {
		return ReasonLifetimeSpend
	}
	if el.MinOrdersPlaced != nil && u.OrdersPlaced < *el.MinOrdersPlaced {
		return ReasonOrdersPlaced
	}
	if el.FirstOrderOnly && u.OrdersPlaced > 0 {
		return ReasonNotFirstOrder
	}
	if len(el.AllowedCountries) > 0 && !slices.Contains(el.AllowedCountries, u.Country) {
		return ReasonCountry
	}

	if el.MinCartValue.Valid && s.Cart.Value.LessThan(el.MinCartValue.Decimal) {
		return ReasonCartValue
	}
	if len(el.ApplicableCategories) > 0 && !slices.ContainsFunc(el.ApplicableCategories, s.Cart.HasCategory) {
		return ReasonNoApplicableCategory
	}
	if slices.ContainsFunc(el.ExcludedCategories, s.Cart.HasCategory) {
		return ReasonExcludedCategory
	}
	if el.MinItemsCount != nil && s.Cart.TotalItems < *el.MinItemsCount {
		return ReasonItemsCount
	}

	return ReasonNone
}
