package adapter

import (
	"context"
	"sync/atomic"

	"storefront/internal/model"
)

// Mock implements Storefront for testing.
// Each method can be configured via function fields; Calls counts every
// invocation so tests can assert that no remote call was issued.
type Mock struct {
	AddItemFunc            func(ctx context.Context, productID string, quantity int) (model.Cart, error)
	RemoveItemFunc         func(ctx context.Context, cartItemID string) (model.Cart, error)
	UpdateItemQuantityFunc func(ctx context.Context, cartItemID string, quantity int) (model.Cart, error)
	GetCartFunc            func(ctx context.Context) (model.Cart, error)
	ListProductsFunc       func(ctx context.Context) (model.ProductPage, error)
	RegisterFunc           func(ctx context.Context) (model.VisitorCredential, error)

	calls atomic.Int64
}

// Calls returns how many methods have been invoked.
func (m *Mock) Calls() int {
	return int(m.calls.Load())
}

// AddItem calls the configured AddItemFunc or returns an error.
func (m *Mock) AddItem(ctx context.Context, productID string, quantity int) (model.Cart, error) {
	m.calls.Add(1)
	if m.AddItemFunc != nil {
		return m.AddItemFunc(ctx, productID, quantity)
	}
	return model.Cart{}, model.NewInternalError(nil)
}

// RemoveItem calls the configured RemoveItemFunc or returns an error.
func (m *Mock) RemoveItem(ctx context.Context, cartItemID string) (model.Cart, error) {
	m.calls.Add(1)
	if m.RemoveItemFunc != nil {
		return m.RemoveItemFunc(ctx, cartItemID)
	}
	return model.Cart{}, model.NewNotFoundError("cart item")
}

// UpdateItemQuantity calls the configured UpdateItemQuantityFunc or returns an error.
func (m *Mock) UpdateItemQuantity(ctx context.Context, cartItemID string, quantity int) (model.Cart, error) {
	m.calls.Add(1)
	if m.UpdateItemQuantityFunc != nil {
		return m.UpdateItemQuantityFunc(ctx, cartItemID, quantity)
	}
	return model.Cart{}, model.NewNotFoundError("cart item")
}

// GetCart calls the configured GetCartFunc or returns an error.
func (m *Mock) GetCart(ctx context.Context) (model.Cart, error) {
	m.calls.Add(1)
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx)
	}
	return model.Cart{}, model.NewNotFoundError("cart")
}

// ListProducts calls the configured ListProductsFunc or returns an empty page.
func (m *Mock) ListProducts(ctx context.Context) (model.ProductPage, error) {
	m.calls.Add(1)
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx)
	}
	return model.ProductPage{Products: []model.Product{}}, nil
}

// Register calls the configured RegisterFunc or returns a fixed credential.
func (m *Mock) Register(ctx context.Context) (model.VisitorCredential, error) {
	m.calls.Add(1)
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx)
	}
	return model.VisitorCredential{VisitorID: "visitor-1", Token: "token-1", CartID: "cart-1"}, nil
}

// Verify Mock implements Storefront interface at compile time.
var _ Storefront = (*Mock)(nil)
