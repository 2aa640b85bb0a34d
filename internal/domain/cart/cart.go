// Package cart models the shopping cart a coupon is evaluated against.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/money"
)

// InvalidItemError describes a structurally invalid cart line.
type InvalidItemError struct {
	Index  int
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("cart item %d: %s", e.Index, e.Reason)
}

// Item is a single cart line.
type Item struct {
	ProductID string
	Category  string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Cart is an unordered bag of items; item order never affects results.
type Cart struct {
	Items []Item
}

// Validate rejects carts that cannot be evaluated. An empty cart is valid:
// it is worth zero and holds no categories.
func (c Cart) Validate() error {
	for i, item := range c.Items {
		switch {
		case item.UnitPrice.IsNegative():
			return &InvalidItemError{Index: i, Reason: "unit price must not be negative"}
		case item.Quantity <= 0:
			return &InvalidItemError{Index: i, Reason: "quantity must be greater than 0"}
		}
	}
	return nil
}

// Summary holds the values derived from a cart that eligibility checks read.
type Summary struct {
	Value      decimal.Decimal
	TotalItems int
	Categories map[string]struct{}
}

// Summarize computes cart value, total quantity and the set of categories
// in one pass.
func Summarize(c Cart) Summary {
	s := Summary{
		Value:      decimal.Zero,
		Categories: make(map[string]struct{}, len(c.Items)),
	}
	for _, item := range c.Items {
		s.Value = s.Value.Add(money.Line(item.UnitPrice, item.Quantity))
		s.TotalItems += item.Quantity
		s.Categories[item.Category] = struct{}{}
	}
	return s
}

// HasCategory reports whether any item in the cart belongs to category.
func (s Summary) HasCategory(category string) bool {
	_, ok := s.Categories[category]
	return ok
}
