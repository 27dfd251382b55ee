package reconcile

import (
	"testing"

	"storefront/internal/model"
)

func item(productID, title string, quantity, available int) model.CartItem {
	return model.CartItem{
		ID:       "ci-" + productID,
		Product:  model.Product{ID: productID, Title: title, AvailableQuantity: available},
		Quantity: quantity,
	}
}

func intPtr(i int) *int { return &i }

func diffString(d model.DiffItem) string {
	if d.NewQuantity == nil {
		return d.ProductID + ":unavailable"
	}
	return d.ProductID + ":reduced"
}

func TestReconcile_ReducedQuantity(t *testing.T) {
	local := []model.CartItem{item("p1", "Widget", 3, 10)}
	server := []model.CartItem{item("p1", "Widget", 3, 1)}

	merged, diff := Reconcile(server, local)

	if len(diff) != 1 {
		t.Fatalf("len(diff) = %d, want 1", len(diff))
	}
	d := diff[0]
	if d.ProductID != "p1" || d.Title != "Widget" || d.OldQuantity != 3 {
		t.Errorf("diff = %+v, want p1/Widget/old 3", d)
	}
	if d.NewQuantity == nil || *d.NewQuantity != 1 {
		t.Errorf("NewQuantity = %v, want 1", d.NewQuantity)
	}

	if len(merged) != 1 || merged[0].Quantity != 3 {
		t.Fatalf("merged = %+v, want p1 with local quantity 3", merged)
	}
	if merged[0].Product.AvailableQuantity != 1 {
		t.Errorf("merged product snapshot AvailableQuantity = %d, want server's 1", merged[0].Product.AvailableQuantity)
	}

	acked := Acknowledge(merged, diff)
	if len(acked) != 1 || acked[0].ProductID() != "p1" || acked[0].Quantity != 1 {
		t.Errorf("Acknowledge() = %+v, want [p1 x1]", acked)
	}
}

func TestReconcile_MissingOnServer(t *testing.T) {
	local := []model.CartItem{item("p1", "Widget", 1, 5), item("p2", "Gadget", 2, 5)}
	server := []model.CartItem{item("p1", "Widget", 1, 5)}

	merged, diff := Reconcile(server, local)

	if len(diff) != 1 {
		t.Fatalf("len(diff) = %d, want 1", len(diff))
	}
	if diff[0].ProductID != "p2" || diff[0].OldQuantity != 2 || diff[0].NewQuantity != nil {
		t.Errorf("diff[0] = %+v, want p2 old 2 without newQuantity", diff[0])
	}
	if _, ok := model.FindItem(merged, "p2"); !ok {
		t.Error("unavailable item should stay in merged until acknowledged")
	}

	acked := Acknowledge(merged, diff)
	if _, ok := model.FindItem(acked, "p2"); ok {
		t.Error("p2 should be gone after Acknowledge()")
	}
	if len(acked) != 1 {
		t.Errorf("len(acked) = %d, want 1", len(acked))
	}
}

func TestReconcile_DiffClassification(t *testing.T) {
	archived := item("p4", "Retired", 1, 9)
	archived.Product.IsArchived = true

	tests := []struct {
		name   string
		local  model.CartItem
		server []model.CartItem
		want   string // "" means no diff entry
	}{
		{"in stock", item("p1", "A", 2, 5), []model.CartItem{item("p1", "A", 2, 5)}, ""},
		{"exactly enough", item("p1", "A", 5, 5), []model.CartItem{item("p1", "A", 5, 5)}, ""},
		{"reduced", item("p1", "A", 4, 9), []model.CartItem{item("p1", "A", 4, 3)}, "p1:reduced"},
		{"out of stock", item("p1", "A", 1, 9), []model.CartItem{item("p1", "A", 1, 0)}, "p1:unavailable"},
		{"missing", item("p1", "A", 1, 9), nil, "p1:unavailable"},
		{"archived", item("p4", "Retired", 1, 9), []model.CartItem{archived}, "p4:unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diff := Reconcile(tt.server, []model.CartItem{tt.local})

			if tt.want == "" {
				if len(diff) != 0 {
					t.Errorf("diff = %+v, want empty", diff)
				}
				return
			}
			if len(diff) != 1 {
				t.Fatalf("len(diff) = %d, want 1", len(diff))
			}
			if got := diffString(diff[0]); got != tt.want {
				t.Errorf("diff = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReconcile_DiffCompleteness(t *testing.T) {
	local := []model.CartItem{
		item("ok", "Ok", 1, 5),
		item("low", "Low", 4, 5),
		item("gone", "Gone", 2, 5),
		item("empty", "Empty", 3, 5),
	}
	server := []model.CartItem{
		item("ok", "Ok", 1, 5),
		item("low", "Low", 4, 2),
		item("empty", "Empty", 3, 0),
	}

	_, diff := Reconcile(server, local)

	got := make(map[string]model.DiffItem)
	for _, d := range diff {
		got[d.ProductID] = d
	}
	if len(got) != 3 {
		t.Fatalf("diff covers %d products, want 3: %+v", len(got), diff)
	}
	if _, ok := got["ok"]; ok {
		t.Error("unchanged item must not appear in diff")
	}
	if d := got["low"]; d.NewQuantity == nil || *d.NewQuantity != 2 {
		t.Errorf("low NewQuantity = %v, want 2", d.NewQuantity)
	}
	for _, id := range []string{"gone", "empty"} {
		if !got[id].Unavailable() {
			t.Errorf("%s should be unavailable", id)
		}
	}

	// local order is preserved
	want := []string{"low", "gone", "empty"}
	for i, d := range diff {
		if d.ProductID != want[i] {
			t.Errorf("diff[%d] = %s, want %s", i, d.ProductID, want[i])
		}
	}
}

func TestReconcile_MergedOrder(t *testing.T) {
	local := []model.CartItem{item("p2", "B", 1, 5), item("p1", "A", 1, 5)}
	server := []model.CartItem{item("p1", "A", 1, 5), item("p3", "C", 2, 5), item("p2", "B", 1, 5)}
	server[0].ID = "server-ci-p1"

	merged, diff := Reconcile(server, local)

	if len(diff) != 0 {
		t.Errorf("diff = %+v, want empty", diff)
	}
	want := []string{"p2", "p1", "p3"}
	if len(merged) != len(want) {
		t.Fatalf("len(merged) = %d, want %d", len(merged), len(want))
	}
	for i, id := range want {
		if merged[i].ProductID() != id {
			t.Errorf("merged[%d] = %s, want %s", i, merged[i].ProductID(), id)
		}
	}
	if merged[1].ID != "server-ci-p1" {
		t.Errorf("merged p1 ID = %s, want server cart-item id", merged[1].ID)
	}
	if merged[2].Quantity != 2 {
		t.Errorf("server-only item quantity = %d, want 2", merged[2].Quantity)
	}
}

func TestReconcile_EmptyInputs(t *testing.T) {
	merged, diff := Reconcile(nil, nil)
	if merged == nil || diff == nil {
		t.Error("Reconcile() should return non-nil slices")
	}
	if len(merged) != 0 || len(diff) != 0 {
		t.Errorf("Reconcile(nil, nil) = %v, %v, want empty", merged, diff)
	}
}

func TestAcknowledge_EmptyDiffIsIdempotent(t *testing.T) {
	items := []model.CartItem{item("p1", "A", 7, 2), item("p2", "B", 1, 1)}

	once := Acknowledge(items, nil)
	twice := Acknowledge(once, []model.DiffItem{})

	for _, got := range [][]model.CartItem{once, twice} {
		if len(got) != len(items) {
			t.Fatalf("len = %d, want %d", len(got), len(items))
		}
		for i := range items {
			if got[i] != items[i] {
				t.Errorf("item %d = %+v, want %+v", i, got[i], items[i])
			}
		}
	}

	once[0].Quantity = 99
	if items[0].Quantity != 7 {
		t.Error("Acknowledge() must not alias the input slice")
	}
}

func TestAcknowledge_PostConditions(t *testing.T) {
	local := []model.CartItem{
		item("a", "A", 5, 9),
		item("b", "B", 2, 9),
		item("c", "C", 1, 9),
		item("d", "D", 3, 9),
	}
	server := []model.CartItem{
		item("a", "A", 5, 1),
		item("c", "C", 1, 4),
		item("d", "D", 3, 0),
	}

	merged, diff := Reconcile(server, local)
	acked := Acknowledge(merged, diff)

	for _, it := range acked {
		if it.Quantity > it.Product.AvailableQuantity {
			t.Errorf("%s quantity %d exceeds available %d", it.ProductID(), it.Quantity, it.Product.AvailableQuantity)
		}
	}
	for _, d := range diff {
		if !d.Unavailable() {
			continue
		}
		if _, ok := model.FindItem(acked, d.ProductID); ok {
			t.Errorf("unavailable item %s still present after Acknowledge()", d.ProductID)
		}
	}

	want := map[string]int{"a": 1, "c": 1}
	if len(acked) != len(want) {
		t.Fatalf("acked = %+v, want %v", acked, want)
	}
	for _, it := range acked {
		if want[it.ProductID()] != it.Quantity {
			t.Errorf("%s quantity = %d, want %d", it.ProductID(), it.Quantity, want[it.ProductID()])
		}
	}
}

func TestAcknowledge_IgnoresDiffForAbsentItems(t *testing.T) {
	items := []model.CartItem{item("p1", "A", 1, 1)}
	diff := []model.DiffItem{{ProductID: "ghost", OldQuantity: 1, NewQuantity: intPtr(0)}}

	got := Acknowledge(items, diff)
	if len(got) != 1 || got[0] != items[0] {
		t.Errorf("Acknowledge() = %+v, want %+v", got, items)
	}
}
