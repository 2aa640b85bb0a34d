// Package record is the JSON form coupons take in key-value backends.
package record

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// Coupon is the persisted shape of coupon.Coupon.
type Coupon struct {
	Code              string              `json:"code"`
	Description       string              `json:"description"`
	DiscountType      string              `json:"discountType"`
	DiscountValue     decimal.Decimal     `json:"discountValue"`
	MaxDiscountAmount decimal.NullDecimal `json:"maxDiscountAmount"`
	StartDate         time.Time           `json:"startDate"`
	EndDate           time.Time           `json:"endDate"`
	UsageLimitPerUser *int                `json:"usageLimitPerUser,omitempty"`
	Eligibility       Eligibility         `json:"eligibility"`
}

// Eligibility is the persisted shape of coupon.Eligibility.
type Eligibility struct {
	AllowedUserTiers     []string            `json:"allowedUserTiers,omitempty"`
	MinLifetimeSpend     decimal.NullDecimal `json:"minLifetimeSpend"`
	MinOrdersPlaced      *int                `json:"minOrdersPlaced,omitempty"`
	FirstOrderOnly       bool                `json:"firstOrderOnly,omitempty"`
	AllowedCountries     []string            `json:"allowedCountries,omitempty"`
	MinCartValue         decimal.NullDecimal `json:"minCartValue"`
	ApplicableCategories []string            `json:"applicableCategories,omitempty"`
	ExcludedCategories   []string            `json:"excludedCategories,omitempty"`
	MinItemsCount        *int                `json:"minItemsCount,omitempty"`
}

// FromCoupon converts a domain coupon.
func FromCoupon(c *coupon.Coupon) Coupon {
	e := c.Eligibility
	return Coupon{
		Code:              c.Code,
		Description:       c.Description,
		DiscountType:      string(c.Discount.Type()),
		DiscountValue:     coupon.DiscountValue(c.Discount),
		MaxDiscountAmount: coupon.DiscountCap(c.Discount),
		StartDate:         c.StartDate.UTC(),
		EndDate:           c.EndDate.UTC(),
		UsageLimitPerUser: c.UsageLimitPerUser,
		Eligibility: Eligibility{
			AllowedUserTiers:     e.AllowedUserTiers,
			MinLifetimeSpend:     e.MinLifetimeSpend,
			MinOrdersPlaced:      e.MinOrdersPlaced,
			FirstOrderOnly:       e.FirstOrderOnly,
			AllowedCountries:     e.AllowedCountries,
			MinCartValue:         e.MinCartValue,
			ApplicableCategories: e.ApplicableCategories,
			ExcludedCategories:   e.ExcludedCategories,
			MinItemsCount:        e.MinItemsCount,
		},
	}
}

// Domain converts r back to a domain coupon.
func (r Coupon) Domain() (coupon.Coupon, error) {
	d, err := coupon.NewDiscount(coupon.DiscountType(r.DiscountType), r.DiscountValue, r.MaxDiscountAmount)
	if err != nil {
		return coupon.Coupon{}, errors.Wrapf(err, "coupon %s", r.Code)
	}
	e := r.Eligibility
	return coupon.Coupon{
		Code:              r.Code,
		Description:       r.Description,
		Discount:          d,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		UsageLimitPerUser: r.UsageLimitPerUser,
		Eligibility: coupon.Eligibility{
			AllowedUserTiers:     e.AllowedUserTiers,
			MinLifetimeSpend:     e.MinLifetimeSpend,
			MinOrdersPlaced:      e.MinOrdersPlaced,
			FirstOrderOnly:       e.FirstOrderOnly,
			AllowedCountries:     e.AllowedCountries,
			MinCartValue:         e.MinCartValue,
			ApplicableCategories: e.ApplicableCategories,
			ExcludedCategories:   e.ExcludedCategories,
			MinItemsCount:        e.MinItemsCount,
		},
	}, nil
}

// Marshal encodes c as JSON.
func Marshal(c *coupon.Coupon) ([]byte, error) {
	data, err := json.Marshal(FromCoupon(c))
	if err != nil {
		return nil, errors.Wrapf(err, "marshal coupon %s", c.Code)
	}
	return data, nil
}

// Unmarshal decodes a coupon written by Marshal.
func Unmarshal(data []byte) (coupon.Coupon, error) {
	var r Coupon
	if err := json.Unmarshal(data, &r); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "unmarshal coupon")
	}
	return r.Domain()
}

// MarshalList encodes a coupon snapshot.
func MarshalList(coupons []coupon.Coupon) ([]byte, error) {
	out := make([]Coupon, len(coupons))
	for i := range coupons {
		out[i] = FromCoupon(&coupons[i])
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(err, "marshal coupon list")
	}
	return data, nil
}

// UnmarshalList decodes a snapshot written by MarshalList.
func UnmarshalList(data []byte) ([]coupon.Coupon, error) {
	var rs []Coupon
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, errors.Wrap(err, "unmarshal coupon list")
	}
	out := make([]coupon.Coupon, len(rs))
	for i, r := range rs {
		c, err := r.Domain()
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
