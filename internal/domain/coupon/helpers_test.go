package coupon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/customer"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func nd(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func intPtr(v int) *int {
	return &v
}

func newCoupon(code string, discount Discount) Coupon {
	return Coupon{
		Code:        code,
		Description: code + " offer",
		Discount:    discount,
		StartDate:   fixedNow.Add(-24 * time.Hour),
		EndDate:     fixedNow.Add(30 * 24 * time.Hour),
	}
}

func testUser() customer.Context {
	return customer.Context{
		UserID:        "u1",
		Tier:          "GOLD",
		Country:       "IN",
		LifetimeSpend: d("6000"),
		OrdersPlaced:  3,
	}
}

// cartOf returns a single-line cart worth value.
func cartOf(value string) cart.Cart {
	return cart.Cart{Items: []cart.Item{
		{ProductID: "p1", Category: "electronics", UnitPrice: d(value), Quantity: 1},
	}}
}

func newTestEngine(scope UsageScope) *Engine {
	e := NewEngine(scope)
	e.now = func() time.Time { return fixedNow }
	return e
}
