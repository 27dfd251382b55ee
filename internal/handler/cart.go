package handler

import (
	"context"
	"net/http"

	"storefront/internal/model"
)

// === Request Types ===

type addItemRequest struct {
	ProductID string `json:"productId"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// handleListProducts returns the product catalog.
// GET /products
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, productsView(page))
}

// handleGetCart returns the current cart state.
// GET /cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, h.store.Snapshot())
}

// handleAddItem adds one unit of a catalog product to the cart.
// POST /cart/items
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.ProductID == "" {
		h.writeError(w, model.NewValidationError("productId", "is required"))
		return
	}
	h.mutate(w, r, func(ctx context.Context) error {
		product, err := h.findProduct(ctx, req.ProductID)
		if err != nil {
			return err
		}
		return h.store.AddItem(ctx, product)
	})
}

// handleUpdateQuantity sets the quantity of a cart line. Zero removes it.
// PUT /cart/items/{productId}
func (h *Handler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == nil {
		h.writeError(w, model.NewValidationError("quantity", "is required"))
		return
	}
	if *req.Quantity < 0 {
		h.writeError(w, model.NewValidationError("quantity", "must be >= 0"))
		return
	}
	h.mutate(w, r, func(ctx context.Context) error {
		return h.store.UpdateItemQuantity(ctx, productID, *req.Quantity)
	})
}

// handleDecreaseItem removes one unit; the last unit removes the line.
// POST /cart/items/{productId}/decrease
func (h *Handler) handleDecreaseItem(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	h.mutate(w, r, func(ctx context.Context) error {
		return h.store.DecreaseItem(ctx, productID)
	})
}

// handleRemoveItem removes a cart line.
// DELETE /cart/items/{productId}
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	h.mutate(w, r, func(ctx context.Context) error {
		return h.store.RemoveItem(ctx, productID)
	})
}

// handleClearCart empties the local cart. Local only, so no token is needed.
// DELETE /cart
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.store.ClearCart)
}

// handleSync reconciles the local cart against the server cart.
// POST /cart/sync
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.store.Reconcile)
}

// handleAcknowledge accepts the pending reconciliation diff. Local only.
// POST /cart/acknowledge
func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.store.Acknowledge)
}

// mutate runs a token-gated store operation and writes the resulting state.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context) error) {
	if !h.store.Snapshot().HasToken {
		h.writeCartError(w, model.NewNoTokenError())
		return
	}
	h.apply(w, r, op)
}

// apply runs a store operation and writes the resulting state.
// Errors still carry the Cart-State header of the last good state.
func (h *Handler) apply(w http.ResponseWriter, r *http.Request, op func(ctx context.Context) error) {
	if err := op(r.Context()); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.writeCart(w, h.store.Snapshot())
}

func (h *Handler) writeCart(w http.ResponseWriter, st model.CartState) {
	h.setCartState(w, st)
	h.writeJSON(w, http.StatusOK, cartView(st))
}

func (h *Handler) writeCartError(w http.ResponseWriter, err error) {
	h.setCartState(w, h.store.Snapshot())
	h.writeError(w, err)
}

// findProduct resolves a product id against the current catalog.
func (h *Handler) findProduct(ctx context.Context, productID string) (model.Product, error) {
	page, err := h.catalog.ListProducts(ctx)
	if err != nil {
		return model.Product{}, err
	}
	for _, p := range page.Products {
		if p.ID == productID {
			return p, nil
		}
	}
	return model.Product{}, model.NewNotFoundError("product")
}
