package httpapi

import (
	"encoding/json"
	"net/http"

	"lkshop-be/internal/cart"
	"lkshop-be/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CartHandler struct {
	carts cart.Service
}

func NewCartHandler(carts cart.Service) *CartHandler {
	return &CartHandler{carts: carts}
}

type addItemRequest struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFrom(r.Context())
	if !ok {
		respondError(w, r, cart.ErrNoOwner)
		return
	}

	summary, err := h.carts.GetCart(r.Context(), owner)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFrom(r.Context())
	if !ok {
		respondError(w, r, cart.ErrNoOwner)
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "validation_failure"})
		return
	}
	if req.ProductID == 0 || req.Quantity <= 0 {
		respondError(w, r, cart.ErrInvalidQuantity)
		return
	}

	item, err := h.carts.AddItem(r.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFrom(r.Context())
	if !ok {
		respondError(w, r, cart.ErrNoOwner)
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		respondError(w, r, cart.ErrItemNotFound)
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "validation_failure"})
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), owner, itemID, req.Quantity); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFrom(r.Context())
	if !ok {
		respondError(w, r, cart.ErrNoOwner)
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		respondError(w, r, cart.ErrItemNotFound)
		return
	}

	if err := h.carts.RemoveItem(r.Context(), owner, itemID); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFrom(r.Context())
	if !ok {
		respondError(w, r, cart.ErrNoOwner)
		return
	}

	if err := h.carts.Clear(r.Context(), owner); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// MergeOnLogin is invoked by the identity collaborator right after it
// authenticates a session, carrying the old session key in the header.
func (h *CartHandler) MergeOnLogin(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		respondError(w, r, cart.ErrNoOwner)
		return
	}

	sessionKey := r.Header.Get("X-Session-Key")

	merged, err := h.carts.MergeOnLogin(r.Context(), sessionKey, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, merged)
}
