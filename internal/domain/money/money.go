// Package money holds the decimal arithmetic shared by carts and discounts.
// All amounts are shopspring decimals; nothing here touches float64.
package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits discount amounts are rounded to.
const Places = 2

// ErrNegative is returned when an amount that must be non-negative is below zero.
var ErrNegative = errors.New("amount must not be negative")

var hundred = decimal.NewFromInt(100)

// Line returns price × quantity.
func Line(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// Percent returns rate percent of amount, unrounded.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

// RoundWithin rounds d half up to Places. When that lands above limit, d is
// rounded down instead, so d <= limit implies the result is too.
func RoundWithin(d, limit decimal.Decimal) decimal.Decimal {
	r := d.Round(Places)
	if r.GreaterThan(limit) {
		return d.RoundDown(Places)
	}
	return r
}

// FloorZero clamps negative values to zero.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Parse reads a non-negative decimal from s.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse amount %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Wrapf(ErrNegative, "parse amount %q", s)
	}
	return d, nil
}
