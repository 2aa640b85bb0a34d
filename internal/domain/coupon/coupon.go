package coupon

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInput is matched by every ValidationError: a malformed coupon
	// definition, user, cart or usage history.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCouponExists is returned when creating a code that is already stored.
	ErrCouponExists = errors.New("coupon already exists")
	// ErrCouponNotFound is returned when no coupon is stored under a code.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrNotEligible is returned when redeeming a coupon the request does not qualify for.
	ErrNotEligible = errors.New("coupon not eligible")
	// ErrUsageLimitReached is returned by UsageLedger.Record when the limit
	// leaves no room for another redemption.
	ErrUsageLimitReached = errors.New("usage limit reached")
)

// Coupon is a named discount rule. Code is case-sensitive and unique.
type Coupon struct {
	Code        string
	Description string
	Discount    Discount
	StartDate   time.Time
	EndDate     time.Time
	// UsageLimitPerUser is nil when redemptions are unlimited.
	UsageLimitPerUser *int
	Eligibility       Eligibility
}

// Eligibility lists optional constraints. Zero values mean "no constraint":
// empty sets, invalid NullDecimals and nil pointers are skipped.
type Eligibility struct {
	AllowedUserTiers     []string
	MinLifetimeSpend     decimal.NullDecimal
	MinOrdersPlaced      *int
	FirstOrderOnly       bool
	AllowedCountries     []string
	MinCartValue         decimal.NullDecimal
	ApplicableCategories []string
	ExcludedCategories   []string
	MinItemsCount        *int
}

// Clone returns a deep copy of c so callers can hand out snapshots.
func (c Coupon) Clone() Coupon {
	out := c
	if c.UsageLimitPerUser != nil {
		v := *c.UsageLimitPerUser
		out.UsageLimitPerUser = &v
	}
	e := c.Eligibility
	out.Eligibility = Eligibility{
		AllowedUserTiers:     slices.Clone(e.AllowedUserTiers),
		MinLifetimeSpend:     e.MinLifetimeSpend,
		MinOrdersPlaced:      cloneInt(e.MinOrdersPlaced),
		FirstOrderOnly:       e.FirstOrderOnly,
		AllowedCountries:     slices.Clone(e.AllowedCountries),
		MinCartValue:         e.MinCartValue,
		ApplicableCategories: slices.Clone(e.ApplicableCategories),
		ExcludedCategories:   slices.Clone(e.ExcludedCategories),
		MinItemsCount:        cloneInt(e.MinItemsCount),
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Store persists coupon definitions keyed by code.
//
// ListActive returns every stored coupon, including expired and not yet
// started ones, as a point-in-time snapshot. Implementations must not let
// later writes leak into a snapshot already returned.
type Store interface {
	Create(ctx context.Context, c *Coupon) error
	Replace(ctx context.Context, c *Coupon) error
	Get(ctx context.Context, code string) (*Coupon, error)
	ListActive(ctx context.Context) ([]Coupon, error)
}

// UsageLedger tracks how many times each user redeemed each coupon.
//
// Record checks limit and increments in one atomic step, returning
// ErrUsageLimitReached without recording when the limit is exhausted.
type UsageLedger interface {
	GetUsage(ctx context.Context, userID string) (Usage, error)
	Record(ctx context.Context, userID, code string, limit UsageLimit) error
}
