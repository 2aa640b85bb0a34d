package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

func (h *Handler) BestCoupon(w http.ResponseWriter, r *http.Request) {
	var body bestRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	req, err := body.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "coupon.best",
		trace.WithAttributes(attribute.Int("cart.items", body.Cart.itemCount())),
	)
	defer span.End()

	res, err := h.coupons.Best(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "selection failed")
		writeError(w, r, err)
		return
	}

	outcome := "none"
	resp := bestResponse{DiscountAmount: res.DiscountAmount, Message: res.Message}
	if res.Coupon != nil {
		outcome = "found"
		dto := fromCoupon(res.Coupon)
		resp.Coupon = &dto
		span.SetAttributes(attribute.String("coupon.code", res.Coupon.Code))
	}
	h.selections.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) EvaluateCoupons(w http.ResponseWriter, r *http.Request) {
	var body bestRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	req, err := body.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	evals, err := h.coupons.Evaluate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := evaluateResponse{Evaluations: make([]evaluationDTO, len(evals))}
	for i, ev := range evals {
		resp.Evaluations[i] = evaluationDTO{
			Code:           ev.Coupon.Code,
			Eligible:       ev.Eligible,
			Reason:         string(ev.Reason),
			DiscountAmount: ev.DiscountAmount,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	var body redeemRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	code := chi.URLParam(r, "code")
	req, err := body.toDomain(code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := h.coupons.Redeem(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.redemptions.Add(r.Context(), 1, metric.WithAttributes(attribute.String("code", code)))

	writeJSON(w, http.StatusOK, redeemResponse{Code: code, DiscountAmount: ev.DiscountAmount})
}
