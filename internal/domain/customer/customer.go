// Package customer holds the per-request user snapshot coupons are checked against.
package customer

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validation errors.
var (
	ErrMissingUserID        = errors.New("user id is required")
	ErrNegativeSpend        = errors.New("lifetime spend must not be negative")
	ErrNegativeOrdersPlaced = errors.New("orders placed must not be negative")
)

// Context is an immutable view of the user at request time. Tier is an open
// string; no set of tiers is enforced.
type Context struct {
	UserID        string
	Tier          string
	Country       string
	LifetimeSpend decimal.Decimal
	OrdersPlaced  int
}

// Validate rejects user snapshots that cannot be evaluated.
func (c Context) Validate() error {
	switch {
	case c.UserID == "":
		return ErrMissingUserID
	case c.LifetimeSpend.IsNegative():
		return ErrNegativeSpend
	case c.OrdersPlaced < 0:
		return ErrNegativeOrdersPlaced
	}
	return nil
}
