package coupon

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/customer"
)

// MessageNoEligible is the result message when no coupon applies.
const MessageNoEligible = "no eligible coupons found"

// Result is the outcome of a selection. Coupon is nil when nothing applies,
// which is a successful result, not an error.
type Result struct {
	Coupon         *Coupon
	DiscountAmount decimal.Decimal
	Message        string
}

// Evaluation is the verdict for a single coupon.
type Evaluation struct {
	Coupon         Coupon
	Eligible       bool
	Reason         Reason
	DiscountAmount decimal.Decimal
}

// Engine ranks coupons for a user and cart. It reads only its arguments and
// is safe for concurrent use.
type Engine struct {
	evaluator Evaluator
	now       func() time.Time
}

// NewEngine returns an Engine applying usage limits under scope.
func NewEngine(scope UsageScope) *Engine {
	return &Engine{evaluator: NewEvaluator(scope), now: time.Now}
}

// Limit returns the usage limit of c under the engine's scope.
func (e *Engine) Limit(c *Coupon) UsageLimit {
	return UsageLimit{Max: c.UsageLimitPerUser, Scope: e.evaluator.scope}
}

// Validate rejects user and cart input the engine cannot evaluate.
func Validate(user customer.Context, c cart.Cart, usage Usage) error {
	if err := user.Validate(); err != nil {
		return &ValidationError{Field: "user", Reason: err.Error(), Err: err}
	}
	if err := c.Validate(); err != nil {
		return &ValidationError{Field: "cart", Reason: err.Error(), Err: err}
	}
	return usage.Validate()
}

// FindBest picks the single best coupon. Candidates are ordered by higher
// discount, then earlier end date, then smaller code, so the winner does
// not depend on the order of coupons.
func (e *Engine) FindBest(coupons []Coupon, user customer.Context, c cart.Cart, usage Usage) (Result, error) {
	if err := Validate(user, c, usage); err != nil {
		return Result{}, err
	}
	s := NewSubject(e.now(), user, c, usage)

	var best *Evaluation
	for i := range coupons {
		ev := e.evaluate(&coupons[i], &s)
		if !ev.Eligible {
			continue
		}
		if best == nil || compareCandidates(&ev, best) < 0 {
			best = &ev
		}
	}

	if best == nil {
		return Result{DiscountAmount: decimal.Zero, Message: MessageNoEligible}, nil
	}
	winner := best.Coupon
	return Result{
		Coupon:         &winner,
		DiscountAmount: best.DiscountAmount,
		Message:        "best coupon found: " + winner.Code,
	}, nil
}

// Evaluate returns a verdict for every coupon: eligible ones first in
// ranking order, then ineligible ones ordered by code.
func (e *Engine) Evaluate(coupons []Coupon, user customer.Context, c cart.Cart, usage Usage) ([]Evaluation, error) {
	if err := Validate(user, c, usage); err != nil {
		return nil, err
	}
	s := NewSubject(e.now(), user, c, usage)

	out := make([]Evaluation, 0, len(coupons))
	for i := range coupons {
		out = append(out, e.evaluate(&coupons[i], &s))
	}
	slices.SortFunc(out, func(a, b Evaluation) int {
		switch {
		case a.Eligible && !b.Eligible:
			return -1
		case !a.Eligible && b.Eligible:
			return 1
		case a.Eligible:
			return compareCandidates(&a, &b)
		default:
			return strings.Compare(a.Coupon.Code, b.Coupon.Code)
		}
	})
	return out, nil
}

// Check evaluates a single coupon, as done before redeeming it.
func (e *Engine) Check(cp *Coupon, user customer.Context, c cart.Cart, usage Usage) (Evaluation, error) {
	if err := Validate(user, c, usage); err != nil {
		return Evaluation{}, err
	}
	s := NewSubject(e.now(), user, c, usage)
	return e.evaluate(cp, &s), nil
}

func (e *Engine) evaluate(c *Coupon, s *Subject) Evaluation {
	ok, reason := e.evaluator.IsEligible(c, s)
	ev := Evaluation{Coupon: *c, Eligible: ok, Reason: reason, DiscountAmount: decimal.Zero}
	if ok {
		ev.DiscountAmount = ComputeDiscount(c, s.Cart.Value)
	}
	return ev
}

// compareCandidates orders a before b when a should win.
func compareCandidates(a, b *Evaluation) int {
	if c := b.DiscountAmount.Cmp(a.DiscountAmount); c != 0 {
		return c
	}
	if c := a.Coupon.EndDate.Compare(b.Coupon.EndDate); c != 0 {
		return c
	}
	return strings.Compare(a.Coupon.Code, b.Coupon.Code)
}
