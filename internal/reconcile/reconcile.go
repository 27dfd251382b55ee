// Package reconcile merges a freshly fetched server cart into the locally held
// cart and reports the discrepancies a shopper has to confirm before checkout.
// Both functions are pure: they never touch the store, the network or the clock.
package reconcile

import "storefront/internal/model"

// Reconcile compares local items against the authoritative server items.
// Matching is by product id, not cart-item id.
//
// Algorithm:
//  1. Index server items by product id (first occurrence wins)
//  2. For each local item, in local order:
//     server item missing, out of stock or archived → unavailable diff entry, local item kept
//     server availableQuantity < local quantity → reduced diff entry (newQuantity = availableQuantity)
//     otherwise → no entry
//  3. Matched items take the server's item (fresh product snapshot, server cart-item id)
//     with the local quantity; unmatched local items are kept as they are
//  4. Server items with no local counterpart are appended in server order
//
// Nothing is dropped or clamped here; that happens in Acknowledge so the
// shopper sees the old quantities until they confirm.
func Reconcile(serverItems, localItems []model.CartItem) (merged []model.CartItem, diff []model.DiffItem) {
	serverByProduct := make(map[string]model.CartItem, len(serverItems))
	for _, item := range serverItems {
		if _, exists := serverByProduct[item.ProductID()]; !exists {
			serverByProduct[item.ProductID()] = item
		}
	}

	merged = make([]model.CartItem, 0, len(localItems)+len(serverItems))
	diff = []model.DiffItem{}
	seen := make(map[string]bool, len(localItems))

	for _, local := range localItems {
		id := local.ProductID()
		seen[id] = true

		server, exists := serverByProduct[id]
		if !exists {
			diff = append(diff, unavailable(local))
			merged = append(merged, local)
			continue
		}

		switch {
		case !server.Product.Available():
			diff = append(diff, unavailable(local))
		case server.Product.AvailableQuantity < local.Quantity:
			diff = append(diff, reduced(local, server.Product.AvailableQuantity))
		}

		item := server
		item.Quantity = local.Quantity
		merged = append(merged, item)
	}

	for _, server := range serverItems {
		if seen[server.ProductID()] {
			continue
		}
		seen[server.ProductID()] = true
		merged = append(merged, server)
	}

	return merged, diff
}

// Acknowledge applies a pending diff: items without an entry are unchanged,
// reduced items are clamped to their new quantity and unavailable items are
// dropped. An empty diff returns a copy of items.
func Acknowledge(items []model.CartItem, diff []model.DiffItem) []model.CartItem {
	if len(diff) == 0 {
		return model.CloneItems(items)
	}

	byProduct := make(map[string]model.DiffItem, len(diff))
	for _, d := range diff {
		byProduct[d.ProductID] = d
	}

	out := make([]model.CartItem, 0, len(items))
	for _, item := range items {
		d, changed := byProduct[item.ProductID()]
		switch {
		case !changed:
			out = append(out, item)
		case d.Unavailable():
			// dropped
		default:
			item.Quantity = *d.NewQuantity
			out = append(out, item)
		}
	}
	return out
}

func unavailable(local model.CartItem) model.DiffItem {
	return model.DiffItem{
		ProductID:   local.ProductID(),
		Title:       local.Product.Title,
		OldQuantity: local.Quantity,
	}
}

func reduced(local model.CartItem, available int) model.DiffItem {
	d := unavailable(local)
	d.NewQuantity = &available
	return d
}
