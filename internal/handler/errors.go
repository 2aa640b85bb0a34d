package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v. Decoding failures are invalid input.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &coupon.ValidationError{Field: "body", Reason: "malformed JSON", Err: err}
	}
	return nil
}

// writeError maps domain errors to status codes. Anything unrecognized is a
// collaborator failure and reported as 503 without leaking details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation  *coupon.ValidationError
		notEligible *coupon.NotEligibleError
	)
	switch {
	case errors.As(err, &notEligible):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: err.Error(),
			Reason:  string(notEligible.Reason),
		})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: validation.Error(),
			Field:   validation.Field,
		})
	case errors.Is(err, coupon.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: err.Error()})
	case errors.Is(err, coupon.ErrCouponNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: "coupon not found"})
	case errors.Is(err, coupon.ErrCouponExists):
		writeJSON(w, http.StatusConflict, errorResponse{Code: http.StatusConflict, Message: "coupon already exists"})
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Code:    http.StatusServiceUnavailable,
			Message: "service unavailable",
		})
	}
}
