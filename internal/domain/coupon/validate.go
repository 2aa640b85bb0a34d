package coupon

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundredPercent = decimal.NewFromInt(100)

// ValidationError reports a rejected field. It matches ErrInvalidInput
// under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ValidateCoupon checks a definition before it is stored.
func ValidateCoupon(c *Coupon) error {
	if c.Code == "" {
		return &ValidationError{Field: "code", Reason: "is required"}
	}
	if c.Description == "" {
		return &ValidationError{Field: "description", Reason: "is required"}
	}
	if c.StartDate.IsZero() {
		return &ValidationError{Field: "startDate", Reason: "is required"}
	}
	if c.EndDate.IsZero() {
		return &ValidationError{Field: "endDate", Reason: "is required"}
	}
	if c.StartDate.After(c.EndDate) {
		return &ValidationError{Field: "endDate", Reason: "must not be before startDate"}
	}

	switch d := c.Discount.(type) {
	case Flat:
		if !d.Value.IsPositive() {
			return &ValidationError{Field: "discountValue", Reason: "must be greater than 0"}
		}
	case Percent:
		if !d.Rate.IsPositive() {
			return &ValidationError{Field: "discountValue", Reason: "must be greater than 0"}
		}
		if d.Rate.GreaterThan(hundredPercent) {
			return &ValidationError{Field: "discountValue", Reason: "must not exceed 100 for PERCENT coupons"}
		}
		if d.Cap.Valid && !d.Cap.Decimal.IsPositive() {
			return &ValidationError{Field: "maxDiscountAmount", Reason: "must be greater than 0"}
		}
	default:
		return &ValidationError{Field: "discountType", Reason: "must be FLAT or PERCENT"}
	}

	if c.UsageLimitPerUser != nil && *c.UsageLimitPerUser < 0 {
		return &ValidationError{Field: "usageLimitPerUser", Reason: "must not be negative"}
	}

	el := &c.Eligibility
	if el.MinLifetimeSpend.Valid && el.MinLifetimeSpend.Decimal.IsNegative() {
		return &ValidationError{Field: "eligibility.minLifetimeSpend", Reason: "must not be negative"}
	}
	if el.MinCartValue.Valid && el.MinCartValue.Decimal.IsNegative() {
		return &ValidationError{Field: "eligibility.minCartValue", Reason: "must not be negative"}
	}
	if el.MinOrdersPlaced != nil && *el.MinOrdersPlaced < 0 {
		return &ValidationError{Field: "eligibility.minOrdersPlaced", Reason: "must not be negative"}
	}
	if el.MinItemsCount != nil && *el.MinItemsCount < 0 {
		return &ValidationError{Field: "eligibility.minItemsCount", Reason: "must not be negative"}
	}
	return nil
}
