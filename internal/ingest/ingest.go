// Package ingest decodes bulk coupon files: one JSON coupon definition per
// line, in the same shape the HTTP API accepts.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/money"
)

// maxLineBytes bounds a single coupon definition.
const maxLineBytes = 1 << 20

// LineError reports a line that could not be turned into a valid coupon.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Scan reads r line by line. Valid coupons are passed to fn; lines that fail
// to decode or validate go to onInvalid. Blank lines are skipped. An error
// returned by fn stops the scan.
func Scan(ctx context.Context, r io.Reader, fn func(c coupon.Coupon) error, onInvalid func(*LineError)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		c, err := Decode(raw)
		if err == nil {
			err = coupon.ValidateCoupon(&c)
		}
		if err != nil {
			if onInvalid != nil {
				onInvalid(&LineError{Line: line, Err: err})
			}
			continue
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan")
	}
	return nil
}

type fields struct {
	code, description, discountType string
	value, maxAmount                decimal.NullDecimal
	start, end                      time.Time
	usageLimit                      *int
	eligibility                     coupon.Eligibility
}

// Decode parses a single coupon definition. It checks shape only; value rules
// are left to coupon.ValidateCoupon.
func Decode(data []byte) (coupon.Coupon, error) {
	var f fields
	d := jx.DecodeBytes(data)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			f.code, err = d.Str()
		case "description":
			f.description, err = d.Str()
		case "discountType":
			f.discountType, err = d.Str()
		case "discountValue":
			f.value, err = decodeAmount(d)
		case "maxDiscountAmount":
			f.maxAmount, err = decodeAmount(d)
		case "startDate":
			f.start, err = decodeTime(d)
		case "endDate":
			f.end, err = decodeTime(d)
		case "usageLimitPerUser":
			f.usageLimit, err = decodeOptInt(d)
		case "eligibility":
			err = decodeEligibility(d, &f.eligibility)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, string(key))
	}); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "decode coupon")
	}

	if !f.value.Valid {
		return coupon.Coupon{}, &coupon.ValidationError{Field: "discountValue", Reason: "is required"}
	}
	discount, err := coupon.NewDiscount(coupon.DiscountType(f.discountType), f.value.Decimal, f.maxAmount)
	if err != nil {
		return coupon.Coupon{}, err
	}
	return coupon.Coupon{
		Code:              f.code,
		Description:       f.description,
		Discount:          discount,
		StartDate:         f.start,
		EndDate:           f.end,
		UsageLimitPerUser: f.usageLimit,
		Eligibility:       f.eligibility,
	}, nil
}

func decodeEligibility(d *jx.Decoder, e *coupon.Eligibility) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "allowedUserTiers":
			e.AllowedUserTiers, err = decodeStrings(d)
		case "minLifetimeSpend":
			e.MinLifetimeSpend, err = decodeAmount(d)
		case "minOrdersPlaced":
			e.MinOrdersPlaced, err = decodeOptInt(d)
		case "firstOrderOnly":
			if d.Next() == jx.Null {
				err = d.Null()
				break
			}
			e.FirstOrderOnly, err = d.Bool()
		case "allowedCountries":
			e.AllowedCountries, err = decodeStrings(d)
		case "minCartValue":
			e.MinCartValue, err = decodeAmount(d)
		case "applicableCategories":
			e.ApplicableCategories, err = decodeStrings(d)
		case "excludedCategories":
			e.ExcludedCategories, err = decodeStrings(d)
		case "minItemsCount":
			e.MinItemsCount, err = decodeOptInt(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, string(key))
	})
}

// decodeAmount accepts a JSON string or number. null leaves the amount unset.
func decodeAmount(d *jx.Decoder) (decimal.NullDecimal, error) {
	var raw string
	switch d.Next() {
	case jx.Null:
		return decimal.NullDecimal{}, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		raw = n.String()
	}
	v, err := money.Parse(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

// decodeTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("invalid timestamp %q", s)
}

func decodeOptInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
