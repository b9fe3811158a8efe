package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"lkshop-be/internal/cart"
	"lkshop-be/internal/logger"
	"lkshop-be/internal/order"
	"lkshop-be/internal/product"

	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Available int64  `json:"available,omitempty"`
	Requested int64  `json:"requested,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondError maps the engine's typed failures onto status codes. Anything
// unrecognized is an internal storage failure, reported as unavailable
// rather than as a caller mistake.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *product.StockError

	switch {
	case errors.As(err, &stockErr):
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:     stockErr.Error(),
			Code:      "insufficient_stock",
			Available: stockErr.Available,
			Requested: stockErr.Requested,
		})
	case errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidTransition):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation_failure"})
	case errors.Is(err, order.ErrEmptyCart):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "empty_cart"})
	case errors.Is(err, cart.ErrNoOwner), errors.Is(err, order.ErrUnauthorized):
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "unauthorized"})
	case errors.Is(err, order.ErrNumberConflict),
		errors.Is(err, cart.ErrCartConflict):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	default:
		logger.FromCtx(r.Context()).Error("request failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: "the system could not complete the request",
			Code:  "unavailable",
		})
	}
}
