package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/money"
)

// DiscountType is the wire name of a discount variant.
type DiscountType string

const (
	// DiscountFlat takes a fixed amount off the cart.
	DiscountFlat DiscountType = "FLAT"
	// DiscountPercent takes a percentage of the cart value, optionally capped.
	DiscountPercent DiscountType = "PERCENT"
)

// Discount is a closed sum type: the only implementations are Flat and
// Percent. A cap can only be expressed on Percent.
type Discount interface {
	Type() DiscountType
	// Amount returns the discount granted on a cart worth cartValue.
	Amount(cartValue decimal.Decimal) decimal.Decimal
	discount()
}

// Flat takes Value off the cart, never more than the cart is worth.
type Flat struct {
	Value decimal.Decimal
}

func (Flat) Type() DiscountType { return DiscountFlat }

func (f Flat) Amount(cartValue decimal.Decimal) decimal.Decimal {
	return money.FloorZero(decimal.Min(f.Value, cartValue))
}

func (Flat) discount() {}

// Percent takes Rate percent of the cart value. Cap, when valid, bounds the
// result from above.
type Percent struct {
	Rate decimal.Decimal
	Cap  decimal.NullDecimal
}

func (Percent) Type() DiscountType { return DiscountPercent }

func (p Percent) Amount(cartValue decimal.Decimal) decimal.Decimal {
	limit := cartValue
	if p.Cap.Valid {
		limit = decimal.Min(limit, p.Cap.Decimal)
	}
	// The exact amount is bounded first; cent rounding comes last and never
	// lifts it back over the cap or the cart.
	amount := money.FloorZero(decimal.Min(money.Percent(cartValue, p.Rate), limit))
	return money.RoundWithin(amount, money.FloorZero(limit))
}

func (Percent) discount() {}

// ComputeDiscount returns the discount c grants on a cart worth cartValue.
func ComputeDiscount(c *Coupon, cartValue decimal.Decimal) decimal.Decimal {
	if c.Discount == nil {
		return decimal.Zero
	}
	return c.Discount.Amount(cartValue)
}

// NewDiscount builds the variant named by t. A cap on a FLAT discount is
// rejected since it cannot be represented.
func NewDiscount(t DiscountType, value decimal.Decimal, maxAmount decimal.NullDecimal) (Discount, error) {
	switch t {
	case DiscountFlat:
		if maxAmount.Valid {
			return nil, &ValidationError{Field: "maxDiscountAmount", Reason: "not allowed on FLAT coupons"}
		}
		return Flat{Value: value}, nil
	case DiscountPercent:
		return Percent{Rate: value, Cap: maxAmount}, nil
	default:
		return nil, &ValidationError{Field: "discountType", Reason: "must be FLAT or PERCENT"}
	}
}

// DiscountValue returns the configured value of d (flat amount or percentage rate).
func DiscountValue(d Discount) decimal.Decimal {
	switch v := d.(type) {
	case Flat:
		return v.Value
	case Percent:
		return v.Rate
	default:
		return decimal.Zero
	}
}

// DiscountCap returns the cap of a Percent discount, invalid otherwise.
func DiscountCap(d Discount) decimal.NullDecimal {
	if p, ok := d.(Percent); ok {
		return p.Cap
	}
	return decimal.NullDecimal{}
}
