package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProductAvailable(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		want    bool
	}{
		{"in stock", Product{AvailableQuantity: 3}, true},
		{"out of stock", Product{AvailableQuantity: 0}, false},
		{"archived", Product{AvailableQuantity: 3, IsArchived: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.product.Available(); got != tt.want {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckoutBlocked(t *testing.T) {
	tests := []struct {
		name         string
		changed      bool
		acknowledged bool
		want         bool
	}{
		{"clean", false, false, false},
		{"pending diff", true, false, true},
		{"acknowledged", true, true, false},
		{"acknowledged then clean", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := CartState{CartChanged: tt.changed, Acknowledged: tt.acknowledged}
			if got := s.CheckoutBlocked(); got != tt.want {
				t.Errorf("CheckoutBlocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCartStateClone(t *testing.T) {
	n := 1
	s := CartState{
		HasToken: true,
		Items:    []CartItem{{ID: "ci-1", Product: Product{ID: "p1"}, Quantity: 2}},
		CartHash: "h",
		Diff:     []DiffItem{{ProductID: "p1", OldQuantity: 2, NewQuantity: &n}},
	}

	c := s.Clone()
	c.Items[0].Quantity = 9
	*c.Diff[0].NewQuantity = 7

	if s.Items[0].Quantity != 2 {
		t.Errorf("original item quantity = %d, want 2", s.Items[0].Quantity)
	}
	if *s.Diff[0].NewQuantity != 1 {
		t.Errorf("original NewQuantity = %d, want 1", *s.Diff[0].NewQuantity)
	}

	empty := CartState{}.Clone()
	if empty.Items == nil || empty.Diff == nil {
		t.Error("Clone() should return non-nil slices")
	}
}

func TestFindItem(t *testing.T) {
	items := []CartItem{
		{ID: "ci-1", Product: Product{ID: "p1"}},
		{ID: "ci-2", Product: Product{ID: "p2"}},
	}

	got, ok := FindItem(items, "p2")
	if !ok || got.ID != "ci-2" {
		t.Errorf("FindItem(p2) = %+v, %v, want ci-2", got, ok)
	}
	if _, ok := FindItem(items, "ci-1"); ok {
		t.Error("FindItem should match product ids, not cart-item ids")
	}
}

func TestCartStateSubtotal(t *testing.T) {
	s := CartState{Items: []CartItem{
		{Product: Product{ID: "p1", Cost: decimal.RequireFromString("0.10")}, Quantity: 3},
		{Product: Product{ID: "p2", Cost: decimal.RequireFromString("2.50")}, Quantity: 2},
	}}
	if got := s.Subtotal().StringFixed(2); got != "5.30" {
		t.Errorf("Subtotal() = %s, want 5.30", got)
	}
}
