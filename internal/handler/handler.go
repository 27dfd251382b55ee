// Package handler provides the local HTTP and MCP surface over the cart store
// and the product catalog. Handlers stay thin: every decision is the store's.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"storefront/internal/adapter"
	"storefront/internal/model"
	"storefront/internal/notify"
)

// CartStore is the subset of *cart.Store the handlers drive.
type CartStore interface {
	Snapshot() model.CartState
	AddItem(ctx context.Context, product model.Product) error
	UpdateItemQuantity(ctx context.Context, productID string, quantity int) error
	DecreaseItem(ctx context.Context, productID string) error
	RemoveItem(ctx context.Context, productID string) error
	ClearCart(ctx context.Context) error
	Reconcile(ctx context.Context) error
	Acknowledge(ctx context.Context) error
}

// Options holds optional collaborators.
type Options struct {
	// Notifications, when set, backs GET /notifications.
	Notifications *notify.Recorder
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
	// Ready reports dependency health for GET /health; nil means always ready.
	Ready func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store   CartStore
	catalog adapter.Catalog
	opts    Options
	logger  *slog.Logger
}

// New creates a new Handler over the given store and catalog.
func New(store CartStore, catalog adapter.Catalog, logger *slog.Logger, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		catalog: catalog,
		opts:    opts,
		logger:  logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Catalog
	mux.HandleFunc("GET /products", h.handleListProducts)

	// Cart
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("DELETE /cart", h.handleClearCart)
	mux.HandleFunc("POST /cart/items", h.handleAddItem)
	mux.HandleFunc("PUT /cart/items/{productId}", h.handleUpdateQuantity)
	mux.HandleFunc("DELETE /cart/items/{productId}", h.handleRemoveItem)
	mux.HandleFunc("POST /cart/items/{productId}/decrease", h.handleDecreaseItem)
	mux.HandleFunc("POST /cart/sync", h.handleSync)
	mux.HandleFunc("POST /cart/acknowledge", h.handleAcknowledge)

	if h.opts.Notifications != nil {
		mux.HandleFunc("GET /notifications", h.handleNotifications)
	}

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	if h.opts.Metrics != nil {
		mux.Handle("GET /metrics", h.opts.Metrics)
	}

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.toAPIError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

func (h *Handler) toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &model.APIError{
			Code:       "TIMEOUT",
			Message:    "the cart is busy, please retry",
			StatusCode: http.StatusServiceUnavailable,
			Err:        err,
		}
	}
	h.logger.Error("internal error", slog.String("error", err.Error()))
	return &model.APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
	}
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// === Health ===

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		if err := h.opts.Ready(r.Context()); err != nil {
			h.logger.Warn("health check failed", slog.String("error", err.Error()))
			h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// handleNotifications returns and clears pending shopper notifications.
// GET /notifications
func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, notificationsResponse{Notifications: h.opts.Notifications.Drain()})
}

type notificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
}
