package handler

import (
	"bytes"
	"encoding/json"
	"maps"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/customer"
)

// Instant accepts RFC 3339 timestamps or plain dates (midnight UTC).
type Instant struct {
	time.Time
}

func (t *Instant) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "timestamp must be a string")
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return errors.Errorf("invalid timestamp %q", s)
}

func (t Instant) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

type couponDTO struct {
	Code              string           `json:"code"`
	Description       string           `json:"description"`
	DiscountType      string           `json:"discountType"`
	DiscountValue     *decimal.Decimal `json:"discountValue"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty"`
	StartDate         *Instant         `json:"startDate"`
	EndDate           *Instant         `json:"endDate"`
	UsageLimitPerUser *int             `json:"usageLimitPerUser,omitempty"`
	Eligibility       *eligibilityDTO  `json:"eligibility,omitempty"`
}

type eligibilityDTO struct {
	AllowedUserTiers     []string         `json:"allowedUserTiers,omitempty"`
	MinLifetimeSpend     *decimal.Decimal `json:"minLifetimeSpend,omitempty"`
	MinOrdersPlaced      *int             `json:"minOrdersPlaced,omitempty"`
	FirstOrderOnly       bool             `json:"firstOrderOnly,omitempty"`
	AllowedCountries     []string         `json:"allowedCountries,omitempty"`
	MinCartValue         *decimal.Decimal `json:"minCartValue,omitempty"`
	ApplicableCategories []string         `json:"applicableCategories,omitempty"`
	ExcludedCategories   []string         `json:"excludedCategories,omitempty"`
	MinItemsCount        *int             `json:"minItemsCount,omitempty"`
}

func missing(field string) error {
	return &coupon.ValidationError{Field: field, Reason: "is required"}
}

// toDomain checks presence of required fields; value rules are enforced by
// coupon.ValidateCoupon.
func (d *couponDTO) toDomain() (*coupon.Coupon, error) {
	switch {
	case d.Code == "":
		return nil, missing("code")
	case d.Description == "":
		return nil, missing("description")
	case d.DiscountType == "":
		return nil, missing("discountType")
	case d.DiscountValue == nil:
		return nil, missing("discountValue")
	case d.StartDate == nil || d.StartDate.IsZero():
		return nil, missing("startDate")
	case d.EndDate == nil || d.EndDate.IsZero():
		return nil, missing("endDate")
	}

	discount, err := coupon.NewDiscount(coupon.DiscountType(d.DiscountType), *d.DiscountValue, nullDecimal(d.MaxDiscountAmount))
	if err != nil {
		return nil, err
	}

	c := &coupon.Coupon{
		Code:              d.Code,
		Description:       d.Description,
		Discount:          discount,
		StartDate:         d.StartDate.Time,
		EndDate:           d.EndDate.Time,
		UsageLimitPerUser: d.UsageLimitPerUser,
	}
	if e := d.Eligibility; e != nil {
		c.Eligibility = coupon.Eligibility{
			AllowedUserTiers:     e.AllowedUserTiers,
			MinLifetimeSpend:     nullDecimal(e.MinLifetimeSpend),
			MinOrdersPlaced:      e.MinOrdersPlaced,
			FirstOrderOnly:       e.FirstOrderOnly,
			AllowedCountries:     e.AllowedCountries,
			MinCartValue:         nullDecimal(e.MinCartValue),
			ApplicableCategories: e.ApplicableCategories,
			ExcludedCategories:   e.ExcludedCategories,
			MinItemsCount:        e.MinItemsCount,
		}
	}
	return c, nil
}

func fromCoupon(c *coupon.Coupon) couponDTO {
	value := coupon.DiscountValue(c.Discount)
	e := c.Eligibility
	return couponDTO{
		Code:              c.Code,
		Description:       c.Description,
		DiscountType:      string(c.Discount.Type()),
		DiscountValue:     &value,
		MaxDiscountAmount: decimalPtr(coupon.DiscountCap(c.Discount)),
		StartDate:         &Instant{c.StartDate},
		EndDate:           &Instant{c.EndDate},
		UsageLimitPerUser: c.UsageLimitPerUser,
		Eligibility: &eligibilityDTO{
			AllowedUserTiers:     e.AllowedUserTiers,
			MinLifetimeSpend:     decimalPtr(e.MinLifetimeSpend),
			MinOrdersPlaced:      e.MinOrdersPlaced,
			FirstOrderOnly:       e.FirstOrderOnly,
			AllowedCountries:     e.AllowedCountries,
			MinCartValue:         decimalPtr(e.MinCartValue),
			ApplicableCategories: e.ApplicableCategories,
			ExcludedCategories:   e.ExcludedCategories,
			MinItemsCount:        e.MinItemsCount,
		},
	}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

type userDTO struct {
	UserID        string          `json:"userId"`
	UserTier      string          `json:"userTier"`
	Country       string          `json:"country"`
	LifetimeSpend decimal.Decimal `json:"lifetimeSpend"`
	OrdersPlaced  int             `json:"ordersPlaced"`
}

func (u userDTO) toDomain() customer.Context {
	return customer.Context{
		UserID:        u.UserID,
		Tier:          u.UserTier,
		Country:       u.Country,
		LifetimeSpend: u.LifetimeSpend,
		OrdersPlaced:  u.OrdersPlaced,
	}
}

type cartItemDTO struct {
	ProductID string          `json:"productId"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// cartDTO keeps Items as a pointer so an absent list is told apart from an
// empty one; the latter is a valid cart worth zero.
type cartDTO struct {
	Items *[]cartItemDTO `json:"items"`
}

func (c cartDTO) itemCount() int {
	if c.Items == nil {
		return 0
	}
	return len(*c.Items)
}

func (c cartDTO) toDomain() (cart.Cart, error) {
	if c.Items == nil {
		return cart.Cart{}, &coupon.ValidationError{Field: "cart.items", Reason: "is required"}
	}
	items := make([]cart.Item, len(*c.Items))
	for i, it := range *c.Items {
		items[i] = cart.Item{
			ProductID: it.ProductID,
			Category:  it.Category,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}
	return cart.Cart{Items: items}, nil
}

// bestRequest mirrors the selection input. UsageHistory is keyed by user id
// and counts redemptions across all coupons; CouponUsage is keyed by code
// for the requesting user. Either one left out is read from the usage ledger.
type bestRequest struct {
	User         userDTO        `json:"user"`
	Cart         cartDTO        `json:"cart"`
	UsageHistory map[string]int `json:"usageHistory,omitempty"`
	CouponUsage  map[string]int `json:"couponUsage,omitempty"`
}

func (r bestRequest) toDomain() (coupon.BestRequest, error) {
	c, err := r.Cart.toDomain()
	if err != nil {
		return coupon.BestRequest{}, err
	}
	req := coupon.BestRequest{
		User:     r.User.toDomain(),
		Cart:     c,
		ByCoupon: maps.Clone(r.CouponUsage),
	}
	if r.UsageHistory != nil {
		total := r.UsageHistory[r.User.UserID]
		req.Total = &total
	}
	return req, nil
}

type bestResponse struct {
	Coupon         *couponDTO      `json:"coupon"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Message        string          `json:"message"`
}

type evaluationDTO struct {
	Code           string          `json:"code"`
	Eligible       bool            `json:"eligible"`
	Reason         string          `json:"reason,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

type evaluateResponse struct {
	Evaluations []evaluationDTO `json:"evaluations"`
}

type listResponse struct {
	Coupons    []couponDTO `json:"coupons"`
	TotalCount int         `json:"totalCount"`
}

type redeemRequest struct {
	User userDTO `json:"user"`
	Cart cartDTO `json:"cart"`
}

func (r redeemRequest) toDomain(code string) (coupon.RedeemRequest, error) {
	c, err := r.Cart.toDomain()
	if err != nil {
		return coupon.RedeemRequest{}, err
	}
	return coupon.RedeemRequest{Code: code, User: r.User.toDomain(), Cart: c}, nil
}

type redeemResponse struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}
