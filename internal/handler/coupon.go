package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var body couponDTO
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := body.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.coupons.Create(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromCoupon(c))
}

func (h *Handler) ReplaceCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var body couponDTO
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Code == "" {
		body.Code = code
	}
	if body.Code != code {
		writeError(w, r, &coupon.ValidationError{Field: "code", Reason: "must match the coupon addressed in the path"})
		return
	}
	c, err := body.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.coupons.Replace(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromCoupon(c))
}

func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromCoupon(c))
}

func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := listResponse{
		Coupons:    make([]couponDTO, len(coupons)),
		TotalCount: len(coupons),
	}
	for i := range coupons {
		resp.Coupons[i] = fromCoupon(&coupons[i])
	}
	writeJSON(w, http.StatusOK, resp)
}
