package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"lkshop-be/internal/middleware"
	"lkshop-be/internal/order"

	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	orders order.Service
}

func NewOrderHandler(orders order.Service) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type checkoutRequest struct {
	DeliveryAddress string `json:"delivery_address"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Comments        string `json:"comments"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		respondError(w, r, order.ErrUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "validation_failure"})
		return
	}

	o, err := h.orders.Checkout(r.Context(), userID, order.CheckoutInput{
		DeliveryAddress: req.DeliveryAddress,
		Phone:           req.Phone,
		Email:           req.Email,
		Comments:        req.Comments,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		respondError(w, r, order.ErrUnauthorized)
		return
	}

	orders, err := h.orders.GetOrders(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Detail(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		respondError(w, r, order.ErrUnauthorized)
		return
	}

	orderID, err := strconv.ParseUint(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		respondError(w, r, order.ErrOrderNotFound)
		return
	}

	o, err := h.orders.GetOrderDetail(r.Context(), userID, orderID, false)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

// UpdateStatus is the fulfillment collaborator's hook; status progression
// past pending happens here, not in checkout. Customers can only cancel
// their own orders.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		respondError(w, r, order.ErrUnauthorized)
		return
	}

	orderID, err := strconv.ParseUint(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		respondError(w, r, order.ErrOrderNotFound)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "validation_failure"})
		return
	}

	err = h.orders.UpdateStatus(
		r.Context(), userID, orderID,
		order.Status(req.Status), middleware.IsAdminFrom(r.Context()),
	)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}
