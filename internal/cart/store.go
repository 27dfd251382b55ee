// Package cart owns the client-held cart state. The Store is the only
// writer: it issues remote mutations, validates every server response
// before committing it, folds reconciliation passes into the state, and
// mirrors each committed state to storage.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/adapter"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/reconcile"
	"storefront/internal/schema"
	"storefront/internal/storage"
)

// =============================================================================
// CART STORE
// =============================================================================
//
// Every mutation and every reconciliation pass holds the store's slot for its
// whole duration, remote call included. Overlapping callers queue on the slot,
// so each one reads the state the previous one committed and a mutation can
// never be overwritten by a stale response.
//
// Readers never wait on the slot: Snapshot takes a short read lock and
// returns a deep copy.
//
// Failure contract: a remote or validation failure leaves the state exactly
// as it was, emits a notification and returns a *model.APIError. Logical
// no-ops (no token, unknown product, unchanged quantity) return nil.
// =============================================================================

// Operation names used in logs and metrics.
const (
	opAddItem        = "add_item"
	opUpdateQuantity = "update_quantity"
	opRemoveItem     = "remove_item"
	opReconcile      = "reconcile"
)

var failureMessages = map[string]string{
	opAddItem:        "Failed to add item",
	opUpdateQuantity: "Failed to update quantity",
	opRemoveItem:     "Failed to remove item",
	opReconcile:      "Failed to sync cart",
}

// Options configures optional Store collaborators. Zero values are valid.
type Options struct {
	Repository *storage.StateRepository
	Notifier   notify.Notifier
	Metrics    *metrics.Cart
	Logger     *slog.Logger
}

// Store holds the cart state and serializes everything that changes it.
type Store struct {
	svc      adapter.CartService
	repo     *storage.StateRepository
	notifier notify.Notifier
	metrics  *metrics.Cart
	logger   *slog.Logger

	slot chan struct{}

	mu    sync.RWMutex
	state model.CartState
}

// New creates a store with an empty cart and no token.
func New(svc adapter.CartService, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		svc:      svc,
		repo:     opts.Repository,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   logger,
		slot:     make(chan struct{}, 1),
		state:    model.CartState{Items: []model.CartItem{}, Diff: []model.DiffItem{}},
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() model.CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// === Lifecycle ===

// Load rehydrates the state from the repository. The token flag is not
// restored: it reflects the credential held by this process.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	loaded, found, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading cart state: %w", err)
	}
	if !found {
		return nil
	}

	s.mu.Lock()
	loaded.HasToken = s.state.HasToken
	s.state = loaded.Clone()
	s.mu.Unlock()

	s.metrics.SetPendingDiff(len(loaded.Diff))
	s.logger.Info("cart state restored", "items", len(loaded.Items), "pending_diff", len(loaded.Diff))
	return nil
}

// SetHasToken records whether a visitor token is available. Mutations are
// no-ops until it is true.
func (s *Store) SetHasToken(ctx context.Context, hasToken bool) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.commit(ctx, func(st *model.CartState) { st.HasToken = hasToken })
	return nil
}

// === Mutations ===

// AddItem adds one unit of product, or bumps the quantity of the matching
// line when the product is already in the cart.
func (s *Store) AddItem(ctx context.Context, product model.Product) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	current := s.Snapshot()
	if !current.HasToken {
		return s.noop(opAddItem, "no token", "product_id", product.ID)
	}
	if existing, ok := current.Find(product.ID); ok {
		return s.updateItemQuantity(ctx, existing, existing.Quantity+1)
	}
	if !product.Available() {
		return s.noop(opAddItem, "product unavailable", "product_id", product.ID)
	}

	start := time.Now()
	cart, err := s.svc.AddItem(ctx, product.ID, 1)
	return s.applyMutation(ctx, opAddItem, start, cart, err, false)
}

// UpdateItemQuantity sets the quantity of the line holding productID.
// A quantity <= 0 removes the line; a quantity above the product's
// available stock is ignored.
func (s *Store) UpdateItemQuantity(ctx context.Context, productID string, quantity int) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	current := s.Snapshot()
	if !current.HasToken {
		return s.noop(opUpdateQuantity, "no token", "product_id", productID)
	}
	item, ok := current.Find(productID)
	if !ok {
		return s.noop(opUpdateQuantity, "not in cart", "product_id", productID)
	}
	return s.updateItemQuantity(ctx, item, quantity)
}

// DecreaseItem lowers the quantity by one, removing the line at quantity 1.
func (s *Store) DecreaseItem(ctx context.Context, productID string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	current := s.Snapshot()
	if !current.HasToken {
		return s.noop(opUpdateQuantity, "no token", "product_id", productID)
	}
	item, ok := current.Find(productID)
	if !ok {
		return s.noop(opUpdateQuantity, "not in cart", "product_id", productID)
	}
	if item.Quantity > 1 {
		return s.updateItemQuantity(ctx, item, item.Quantity-1)
	}
	return s.removeItem(ctx, item)
}

// RemoveItem removes the line holding productID.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	current := s.Snapshot()
	if !current.HasToken {
		return s.noop(opRemoveItem, "no token", "product_id", productID)
	}
	item, ok := current.Find(productID)
	if !ok {
		return s.noop(opRemoveItem, "not in cart", "product_id", productID)
	}
	return s.removeItem(ctx, item)
}

// ClearCart empties the local cart without calling the server.
func (s *Store) ClearCart(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	var cleared int
	s.commit(ctx, func(st *model.CartState) {
		cleared = len(st.Items)
		st.Items = []model.CartItem{}
		st.CartHash = ""
	})
	if cleared > 0 {
		notify.Info(ctx, s.notifier, "Cart cleared")
	}
	return nil
}

// === Reconciliation ===

// Reconcile fetches the authoritative cart and merges it into the local
// state. A failed fetch or an invalid payload leaves the state untouched.
func (s *Store) Reconcile(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if !s.Snapshot().HasToken {
		return s.noop(opReconcile, "no token")
	}

	start := time.Now()
	cart, err := s.svc.GetCart(ctx)
	if err == nil {
		err = schema.ValidateCart(cart)
	}
	if err != nil {
		s.metrics.ObserveReconcile(metrics.OutcomeFailure, time.Since(start))
		return s.fail(ctx, opReconcile, err)
	}

	s.applyServerCart(ctx, cart)
	s.metrics.ObserveReconcile(metrics.OutcomeSuccess, time.Since(start))
	return nil
}

// ApplyServerCart merges an already fetched server cart, as Reconcile does
// after a successful fetch.
func (s *Store) ApplyServerCart(ctx context.Context, cart model.Cart) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if err := schema.ValidateCart(cart); err != nil {
		return s.fail(ctx, opReconcile, err)
	}
	s.applyServerCart(ctx, cart)
	return nil
}

// Acknowledge commits the pending diff: reduced lines are clamped and
// unavailable lines dropped. Calling it with no pending diff only marks
// the state acknowledged.
func (s *Store) Acknowledge(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	var pending int
	s.commit(ctx, func(st *model.CartState) {
		pending = len(st.Diff)
		st.Items = reconcile.Acknowledge(st.Items, st.Diff)
		st.Diff = []model.DiffItem{}
		st.CartChanged = false
		st.Acknowledged = true
	})
	s.metrics.SetPendingDiff(0)
	if pending > 0 {
		notify.Success(ctx, s.notifier, "Cart updated to match current stock")
	}
	return nil
}

// === Internals (slot held) ===

func (s *Store) updateItemQuantity(ctx context.Context, item model.CartItem, quantity int) error {
	if quantity <= 0 {
		return s.removeItem(ctx, item)
	}
	if quantity == item.Quantity {
		return s.noop(opUpdateQuantity, "unchanged", "product_id", item.ProductID())
	}
	if quantity > item.Product.AvailableQuantity {
		return s.noop(opUpdateQuantity, "exceeds available stock",
			"product_id", item.ProductID(),
			"quantity", quantity,
			"available", item.Product.AvailableQuantity,
		)
	}

	start := time.Now()
	cart, err := s.svc.UpdateItemQuantity(ctx, item.ID, quantity)
	return s.applyMutation(ctx, opUpdateQuantity, start, cart, err, false)
}

func (s *Store) removeItem(ctx context.Context, item model.CartItem) error {
	start := time.Now()
	cart, err := s.svc.RemoveItem(ctx, item.ID)
	return s.applyMutation(ctx, opRemoveItem, start, cart, err, true)
}

// applyMutation validates a mutation response and commits its items and hash.
// clearEmptyHash drops the hash when the resulting cart is empty.
func (s *Store) applyMutation(ctx context.Context, op string, start time.Time, cart model.Cart, err error, clearEmptyHash bool) error {
	if err == nil {
		err = schema.ValidateCart(cart)
	}
	if err != nil {
		s.metrics.ObserveMutation(op, metrics.OutcomeFailure, time.Since(start))
		return s.fail(ctx, op, err)
	}

	s.commit(ctx, func(st *model.CartState) {
		st.Items = model.CloneItems(cart.Items)
		st.CartHash = cart.Hash
		if clearEmptyHash && len(cart.Items) == 0 {
			st.CartHash = ""
		}
	})
	s.metrics.ObserveMutation(op, metrics.OutcomeSuccess, time.Since(start))
	s.logger.Debug("cart mutation applied", "operation", op, "items", len(cart.Items), "hash", cart.Hash)
	return nil
}

func (s *Store) applyServerCart(ctx context.Context, cart model.Cart) {
	var diff []model.DiffItem
	s.commit(ctx, func(st *model.CartState) {
		st.Items, st.Diff = reconcile.Reconcile(cart.Items, st.Items)
		st.CartHash = cart.Hash
		st.CartChanged = len(st.Diff) > 0
		st.Acknowledged = false
		diff = st.Diff
	})
	s.metrics.SetPendingDiff(len(diff))

	if len(diff) > 0 {
		s.logger.Info("cart changed on server", "diff_items", len(diff), "hash", cart.Hash)
		notify.Warning(ctx, s.notifier, fmt.Sprintf("Your cart has changed: %d item(s) need your attention", len(diff)))
	}
}

// commit applies fn to the state and persists the result.
func (s *Store) commit(ctx context.Context, fn func(*model.CartState)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state.Clone()
	s.mu.Unlock()

	if s.repo == nil {
		return
	}
	// The state is already committed; a cancelled request must not skip the write.
	if err := s.repo.Save(context.WithoutCancel(ctx), snap); err != nil {
		s.logger.Warn("persisting cart state", "error", err)
	}
}

func (s *Store) fail(ctx context.Context, op string, err error) error {
	s.logger.Error("cart operation failed", "operation", op, "error", err)
	notify.Error(ctx, s.notifier, failureMessages[op])
	return asAPIError(err)
}

func (s *Store) noop(op, reason string, args ...any) error {
	s.metrics.ObserveMutation(op, metrics.OutcomeNoop, 0)
	s.logger.Debug("cart operation skipped", append([]any{"operation", op, "reason", reason}, args...)...)
	return nil
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.slot
}

// asAPIError keeps structured errors and wraps everything else.
func asAPIError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewUpstreamError("storefront API", err)
}
