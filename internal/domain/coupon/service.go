package coupon

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/customer"
)

// NotEligibleError is returned by Redeem when the coupon does not apply.
type NotEligibleError struct {
	Code   string
	Reason Reason
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("coupon %s not eligible: %s", e.Code, e.Reason)
}

func (e *NotEligibleError) Is(target error) bool {
	return target == ErrNotEligible
}

// BestRequest holds the input for a selection.
type BestRequest struct {
	User customer.Context
	Cart cart.Cart
	// Total and ByCoupon, when set, replace the matching half of the
	// ledger's usage. Whatever is left unset is read from the ledger.
	Total    *int
	ByCoupon map[string]int
}

// RedeemRequest holds the input for redeeming a coupon.
type RedeemRequest struct {
	Code string
	User customer.Context
	Cart cart.Cart
}

// Service wires the engine to its collaborators.
type Service struct {
	store  Store
	ledger UsageLedger
	engine *Engine
}

// NewService creates a Service.
func NewService(store Store, ledger UsageLedger, engine *Engine) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		engine: engine,
	}
}

// Create validates and stores a new coupon.
func (s *Service) Create(ctx context.Context, c *Coupon) error {
	if err := ValidateCoupon(c); err != nil {
		return err
	}
	if err := s.store.Create(ctx, c); err != nil {
		return errors.Wrapf(err, "create coupon %s", c.Code)
	}
	zctx.From(ctx).Info("Coupon created",
		zap.String("code", c.Code),
		zap.String("type", string(c.Discount.Type())),
	)
	return nil
}

// Replace validates c and overwrites the stored coupon with the same code.
func (s *Service) Replace(ctx context.Context, c *Coupon) error {
	if err := ValidateCoupon(c); err != nil {
		return err
	}
	if err := s.store.Replace(ctx, c); err != nil {
		return errors.Wrapf(err, "replace coupon %s", c.Code)
	}
	zctx.From(ctx).Info("Coupon replaced", zap.String("code", c.Code))
	return nil
}

// Get returns the coupon stored under code.
func (s *Service) Get(ctx context.Context, code string) (*Coupon, error) {
	c, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, errors.Wrapf(err, "get coupon %s", code)
	}
	return c, nil
}

// List returns all stored coupons.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// Best selects the best coupon for the request. Store and ledger failures
// are returned as errors and never reported as "no eligible coupons".
func (s *Service) Best(ctx context.Context, req BestRequest) (Result, error) {
	coupons, usage, err := s.load(ctx, req)
	if err != nil {
		return Result{}, err
	}

	res, err := s.engine.FindBest(coupons, req.User, req.Cart, usage)
	if err != nil {
		return Result{}, err
	}

	lg := zctx.From(ctx)
	if res.Coupon == nil {
		lg.Debug("No eligible coupon",
			zap.String("user_id", req.User.UserID),
			zap.Int("coupons", len(coupons)),
		)
	} else {
		lg.Debug("Best coupon selected",
			zap.String("user_id", req.User.UserID),
			zap.String("code", res.Coupon.Code),
			zap.Stringer("discount", res.DiscountAmount),
		)
	}
	return res, nil
}

// Evaluate returns the verdict for every stored coupon.
func (s *Service) Evaluate(ctx context.Context, req BestRequest) ([]Evaluation, error) {
	coupons, usage, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.engine.Evaluate(coupons, req.User, req.Cart, usage)
}

// Redeem re-checks one coupon for the user and cart and records a use.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (Evaluation, error) {
	if err := Validate(req.User, req.Cart, Usage{}); err != nil {
		return Evaluation{}, err
	}

	c, err := s.store.Get(ctx, req.Code)
	if err != nil {
		return Evaluation{}, errors.Wrapf(err, "get coupon %s", req.Code)
	}
	usage, err := s.ledger.GetUsage(ctx, req.User.UserID)
	if err != nil {
		return Evaluation{}, errors.Wrap(err, "get usage")
	}

	ev, err := s.engine.Check(c, req.User, req.Cart, usage)
	if err != nil {
		return Evaluation{}, err
	}
	if !ev.Eligible {
		return ev, &NotEligibleError{Code: c.Code, Reason: ev.Reason}
	}

	// The ledger re-checks the limit atomically: a concurrent redemption may
	// have used the last slot since GetUsage.
	if err := s.ledger.Record(ctx, req.User.UserID, c.Code, s.engine.Limit(c)); err != nil {
		if errors.Is(err, ErrUsageLimitReached) {
			ev.Eligible = false
			ev.Reason = ReasonUsageLimitReached
			ev.DiscountAmount = decimal.Zero
			return ev, &NotEligibleError{Code: c.Code, Reason: ev.Reason}
		}
		return Evaluation{}, errors.Wrap(err, "record usage")
	}

	zctx.From(ctx).Info("Coupon redeemed",
		zap.String("user_id", req.User.UserID),
		zap.String("code", c.Code),
		zap.Stringer("discount", ev.DiscountAmount),
	)
	return ev, nil
}

// load validates the request and then reads a coupon snapshot and the
// user's usage.
func (s *Service) load(ctx context.Context, req BestRequest) ([]Coupon, Usage, error) {
	usage := Usage{ByCoupon: req.ByCoupon}
	if req.Total != nil {
		usage.Total = *req.Total
	}
	if err := Validate(req.User, req.Cart, usage); err != nil {
		return nil, Usage{}, err
	}

	coupons, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, Usage{}, errors.Wrap(err, "list coupons")
	}

	if req.Total == nil || req.ByCoupon == nil {
		recorded, err := s.ledger.GetUsage(ctx, req.User.UserID)
		if err != nil {
			return nil, Usage{}, errors.Wrap(err, "get usage")
		}
		if req.Total == nil {
			usage.Total = recorded.Total
		}
		if req.ByCoupon == nil {
			usage.ByCoupon = recorded.ByCoupon
		}
	}
	return coupons, usage, nil
}
