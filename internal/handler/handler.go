// Package handler exposes the coupon service over HTTP/JSON.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const instrumentationName = "github.com/xenking/coupon-engine/internal/handler"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// CouponService is the application API the handlers drive.
type CouponService interface {
	Create(ctx context.Context, c *coupon.Coupon) error
	Replace(ctx context.Context, c *coupon.Coupon) error
	Get(ctx context.Context, code string) (*coupon.Coupon, error)
	List(ctx context.Context) ([]coupon.Coupon, error)
	Best(ctx context.Context, req coupon.BestRequest) (coupon.Result, error)
	Evaluate(ctx context.Context, req coupon.BestRequest) ([]coupon.Evaluation, error)
	Redeem(ctx context.Context, req coupon.RedeemRequest) (coupon.Evaluation, error)
}

var _ CouponService = (*coupon.Service)(nil)

// Handler serves the coupon API.
type Handler struct {
	coupons CouponService

	tracer      trace.Tracer
	selections  metric.Int64Counter
	redemptions metric.Int64Counter
}

// NewHandler creates a Handler reporting spans and counters to the given
// providers.
func NewHandler(coupons CouponService, tp trace.TracerProvider, mp metric.MeterProvider) (*Handler, error) {
	meter := mp.Meter(instrumentationName)

	selections, err := meter.Int64Counter("coupon.selections",
		metric.WithDescription("Best-coupon selections by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create selections counter")
	}
	redemptions, err := meter.Int64Counter("coupon.redemptions",
		metric.WithDescription("Coupon redemptions by code"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create redemptions counter")
	}

	return &Handler{
		coupons:     coupons,
		tracer:      tp.Tracer(instrumentationName),
		selections:  selections,
		redemptions: redemptions,
	}, nil
}

// Routes mounts the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/coupons", func(r chi.Router) {
		r.Get("/", h.ListCoupons)
		r.Post("/", h.CreateCoupon)
		r.Post("/best", h.BestCoupon)
		r.Post("/evaluate", h.EvaluateCoupons)
		r.Get("/{code}", h.GetCoupon)
		r.Put("/{code}", h.ReplaceCoupon)
		r.Post("/{code}/redeem", h.RedeemCoupon)
	})
}
