package handler

import (
	"storefront/internal/model"
)

// Monetary amounts leave the process as decimal strings.

// ProductView is the JSON shape of a catalog product.
type ProductView struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Cost              string `json:"cost"`
	AvailableQuantity int    `json:"availableQuantity"`
	Archived          bool   `json:"archived,omitempty"`
	Available         bool   `json:"available"`
}

// ProductsView is the product listing.
type ProductsView struct {
	Total    int           `json:"total"`
	Products []ProductView `json:"products"`
}

// ItemView is one cart line.
type ItemView struct {
	CartItemID        string `json:"cartItemId"`
	ProductID         string `json:"productId"`
	Title             string `json:"title"`
	Cost              string `json:"cost"`
	Quantity          int    `json:"quantity"`
	AvailableQuantity int    `json:"availableQuantity"`
	LineTotal         string `json:"lineTotal"`
}

// CartView is the client cart state as exposed over HTTP and MCP.
type CartView struct {
	HasToken        bool             `json:"hasToken"`
	Items           []ItemView       `json:"items"`
	CartHash        string           `json:"cartHash,omitempty"`
	CartChanged     bool             `json:"cartChanged"`
	Diff            []model.DiffItem `json:"diff"`
	Acknowledged    bool             `json:"acknowledged"`
	Subtotal        string           `json:"subtotal"`
	CheckoutBlocked bool             `json:"checkoutBlocked"`
}

func productView(p model.Product) ProductView {
	return ProductView{
		ID:                p.ID,
		Title:             p.Title,
		Cost:              p.Cost.StringFixed(2),
		AvailableQuantity: p.AvailableQuantity,
		Archived:          p.IsArchived,
		Available:         p.Available(),
	}
}

func productsView(page model.ProductPage) ProductsView {
	out := ProductsView{
		Total:    page.Total,
		Products: make([]ProductView, len(page.Products)),
	}
	for i, p := range page.Products {
		out.Products[i] = productView(p)
	}
	return out
}

func cartView(st model.CartState) *CartView {
	v := &CartView{
		HasToken:        st.HasToken,
		Items:           make([]ItemView, len(st.Items)),
		CartHash:        st.CartHash,
		CartChanged:     st.CartChanged,
		Diff:            st.Diff,
		Acknowledged:    st.Acknowledged,
		Subtotal:        st.Subtotal().StringFixed(2),
		CheckoutBlocked: st.CheckoutBlocked(),
	}
	if v.Diff == nil {
		v.Diff = []model.DiffItem{}
	}
	for i, item := range st.Items {
		v.Items[i] = ItemView{
			CartItemID:        item.ID,
			ProductID:         item.ProductID(),
			Title:             item.Product.Title,
			Cost:              item.Product.Cost.StringFixed(2),
			Quantity:          item.Quantity,
			AvailableQuantity: item.Product.AvailableQuantity,
			LineTotal:         item.LineTotal().StringFixed(2),
		}
	}
	return v
}
