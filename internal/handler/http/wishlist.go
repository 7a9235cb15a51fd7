// Package http exposes the agent's REST surface to the storefront SPA.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amourflorals/wishsync/internal/domain"
	"github.com/amourflorals/wishsync/internal/engine"
	apperrors "github.com/amourflorals/wishsync/pkg/errors"
	"github.com/amourflorals/wishsync/pkg/validator"
)

// WishlistHandler serves the per-user wishlist API backed by the engine
// registry.
type WishlistHandler struct {
	manager *engine.Manager
}

// NewWishlistHandler creates the handler.
func NewWishlistHandler(manager *engine.Manager) *WishlistHandler {
	return &WishlistHandler{manager: manager}
}

// AddItemRequest carries the product snapshot the SPA already has, so the
// optimistic insert can show name and price before the storefront confirms.
type AddItemRequest struct {
	ID            string   `json:"id" validate:"required"`
	Name          string   `json:"name"`
	Price         float64  `json:"price" validate:"gte=0"`
	OriginalPrice float64  `json:"originalPrice"`
	Description   string   `json:"description"`
	Images        []string `json:"images"`
	InStock       bool     `json:"inStock"`
	Category      string   `json:"category"`
}

// MoveToCartRequest mirrors the storefront's move endpoint body.
type MoveToCartRequest struct {
	Quantity int     `json:"quantity" validate:"required,gt=0"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// BulkRemoveRequest lists the products to remove.
type BulkRemoveRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,dive,required"`
}

// BulkMoveRequest lists the products to move with a shared quantity.
type BulkMoveRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,dive,required"`
	Quantity   int      `json:"quantity" validate:"required,gt=0"`
}

// engineFor resolves the caller's engine. Guests have no engine.
func (h *WishlistHandler) engineFor(r *http.Request) (*engine.Engine, error) {
	userID := UserID(r.Context())
	if userID == "" {
		return nil, apperrors.Unauthorized("sign in to manage your wishlist")
	}
	return h.manager.Engine(r.Context(), userID), nil
}

// GetState returns the current wishlist view. Guests get an empty, synced
// view rather than an error so the SPA renders the same shape either way.
func (h *WishlistHandler) GetState(w http.ResponseWriter, r *http.Request) {
	if UserID(r.Context()) == "" {
		respondJSON(w, http.StatusOK, engine.State{
			Wishlist: domain.Wishlist{},
			Status:   domain.StatusSynced,
		})
		return
	}

	eng, err := h.engineFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, eng.State())
}

// Sync reconciles with the storefront now. ?force=true bypasses the
// single-flight guard.
func (h *WishlistHandler) Sync(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if err := eng.Sync(r.Context(), force); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, eng.State())
}

// AddItem saves a product to the wishlist.
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	product := domain.Product{
		ID:            req.ID,
		Name:          req.Name,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Description:   req.Description,
		Images:        req.Images,
		InStock:       req.InStock,
		Category:      req.Category,
	}

	if err := eng.Add(r.Context(), product); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, eng.State())
}

// RemoveItem deletes a product from the wishlist.
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := eng.Remove(r.Context(), chi.URLParam(r, "productID")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, eng.State())
}

// Clear empties the wishlist.
func (h *WishlistHandler) Clear(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := eng.Clear(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, eng.State())
}

// MoveToCart transfers one wishlist item into the cart.
func (h *WishlistHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req MoveToCartRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := eng.MoveToCart(r.Context(), chi.URLParam(r, "productID"), req.Quantity, req.Price); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, eng.State())
}

// BulkRemove removes several products and reports per-item outcomes.
func (h *WishlistHandler) BulkRemove(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req BulkRemoveRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	report, err := eng.BulkRemove(r.Context(), req.ProductIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// BulkMoveToCart moves several products into the cart.
func (h *WishlistHandler) BulkMoveToCart(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req BulkMoveRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	report, err := eng.BulkMoveToCart(r.Context(), req.ProductIDs, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// FailedOperations lists queued operations that exhausted their retries.
func (h *WishlistHandler) FailedOperations(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	failed := eng.FailedOperations()
	if failed == nil {
		failed = []engine.FailedOperation{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"failed_operations": failed})
}

// RetryFailedOperation re-queues one failed operation.
func (h *WishlistHandler) RetryFailedOperation(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := eng.RetryFailedOperation(r.Context(), chi.URLParam(r, "operationID")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
