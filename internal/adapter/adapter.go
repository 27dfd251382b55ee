// Package adapter defines the interfaces the storefront uses to reach the
// remote shop API. The GraphQL client implements all of them; tests use Mock.
package adapter

import (
	"context"

	"storefront/internal/model"
)

// CartService abstracts the remote cart mutations and the cart query.
// Every method returns the full cart as the server sees it after the call.
//
// Implementations attach the visitor token themselves; callers never pass it.
type CartService interface {
	// AddItem adds quantity units of productID to the visitor's cart.
	AddItem(ctx context.Context, productID string, quantity int) (model.Cart, error)

	// RemoveItem removes the cart line identified by its cart-item id.
	RemoveItem(ctx context.Context, cartItemID string) (model.Cart, error)

	// UpdateItemQuantity sets the quantity of a cart line.
	UpdateItemQuantity(ctx context.Context, cartItemID string, quantity int) (model.Cart, error)

	// GetCart fetches the authoritative cart, including timestamps.
	GetCart(ctx context.Context) (model.Cart, error)
}

// Catalog lists the products a visitor can add to the cart.
type Catalog interface {
	ListProducts(ctx context.Context) (model.ProductPage, error)
}

// VisitorService issues anonymous visitor credentials.
type VisitorService interface {
	// Register creates a new anonymous visitor and its empty cart.
	// Called once per visitor; the result is cached by the caller.
	Register(ctx context.Context) (model.VisitorCredential, error)
}

// Storefront is the complete remote API surface.
type Storefront interface {
	CartService
	Catalog
	VisitorService
}
