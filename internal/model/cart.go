// Package model defines the storefront domain types shared by every layer:
// products, carts, reconciliation diffs and the client-held cart state.
package model

import (
	"github.com/shopspring/decimal"
)

// Product is a server-owned catalog entry.
// Carts embed a copy of it, so a product held by a CartItem may be stale
// relative to the server until the next fetch.
type Product struct {
	ID                string          `json:"_id" validate:"required"`
	Title             string          `json:"title" validate:"required"`
	Cost              decimal.Decimal `json:"cost" validate:"gte=0"`
	AvailableQuantity int             `json:"availableQuantity" validate:"gte=0"`
	IsArchived        bool            `json:"isArchived,omitempty"`
}

// Available reports whether the product can currently be bought.
func (p Product) Available() bool {
	return !p.IsArchived && p.AvailableQuantity > 0
}

// ProductPage is one page of the product listing.
type ProductPage struct {
	Total    int       `json:"total"`
	Products []Product `json:"products"`
}

// CartItem is a line in a cart. ID is the server cart-item id, distinct from Product.ID.
type CartItem struct {
	ID        string  `json:"_id" validate:"required"`
	CartID    string  `json:"cartId,omitempty"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity" validate:"min=1"`
	AddedAt   string  `json:"addedAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// ProductID is shorthand for item.Product.ID.
func (i CartItem) ProductID() string {
	return i.Product.ID
}

// LineTotal returns cost * quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Product.Cost.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the authoritative server cart. Hash changes whenever items change;
// the client treats it as opaque. The validate tags are the rules a cart must
// meet before the store commits it.
type Cart struct {
	ID        string     `json:"_id" validate:"required"`
	Hash      string     `json:"hash" validate:"required"`
	Items     []CartItem `json:"items" validate:"dive"`
	CreatedAt string     `json:"createdAt,omitempty"`
	UpdatedAt string     `json:"updatedAt,omitempty"`
}

// DiffItem is one discrepancy between the local cart and a fresh server cart.
// A nil NewQuantity means the item became unavailable and will be dropped on acknowledge.
type DiffItem struct {
	ProductID   string `json:"productId"`
	Title       string `json:"title"`
	OldQuantity int    `json:"oldQuantity"`
	NewQuantity *int   `json:"newQuantity,omitempty"`
}

// Unavailable reports whether the item must be removed rather than clamped.
func (d DiffItem) Unavailable() bool {
	return d.NewQuantity == nil
}

// CartState is the client-held view of the cart. The cart store is its only writer.
type CartState struct {
	HasToken     bool       `json:"hasToken"`
	Items        []CartItem `json:"items"`
	CartHash     string     `json:"cartHash,omitempty"`
	CartChanged  bool       `json:"cartChanged"`
	Diff         []DiffItem `json:"diff"`
	Acknowledged bool       `json:"acknowledged"`
}

// Find returns the item holding productID.
func (s CartState) Find(productID string) (CartItem, bool) {
	return FindItem(s.Items, productID)
}

// Subtotal sums the line totals of all items.
func (s CartState) Subtotal() decimal.Decimal {
	return Subtotal(s.Items)
}

// CheckoutBlocked reports whether a pending diff still waits for acknowledgement.
func (s CartState) CheckoutBlocked() bool {
	return s.CartChanged && !s.Acknowledged
}

// Clone returns a deep copy so callers cannot mutate store-owned slices.
func (s CartState) Clone() CartState {
	out := s
	out.Items = CloneItems(s.Items)
	out.Diff = make([]DiffItem, len(s.Diff))
	for i, d := range s.Diff {
		out.Diff[i] = d
		if d.NewQuantity != nil {
			q := *d.NewQuantity
			out.Diff[i].NewQuantity = &q
		}
	}
	return out
}

// FindItem returns the item in items whose product id matches.
func FindItem(items []CartItem, productID string) (CartItem, bool) {
	for _, item := range items {
		if item.Product.ID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

// CloneItems copies items into a fresh, never-nil slice.
func CloneItems(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}

// VisitorCredential is the anonymous shopper identity returned by registration.
type VisitorCredential struct {
	VisitorID string `json:"_id" validate:"required"`
	Token     string `json:"token" validate:"required"`
	CartID    string `json:"cartId" validate:"required"`
}

// Empty reports whether no token has been issued.
func (v VisitorCredential) Empty() bool {
	return v.Token == ""
}
