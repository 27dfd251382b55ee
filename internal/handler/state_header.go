package handler

import (
	"net/http"

	"github.com/dunglas/httpsfv"

	"storefront/internal/model"
)

// CartStateHeader carries a summary of the cart state as an RFC 8941
// dictionary, e.g. hash="h-2", changed=?1, acknowledged=?0, items=2, units=5.
const CartStateHeader = "Cart-State"

// formatCartState serializes the summary dictionary.
func formatCartState(st model.CartState) (string, error) {
	units := 0
	for _, item := range st.Items {
		units += item.Quantity
	}

	dict := httpsfv.NewDictionary()
	dict.Add("hash", httpsfv.NewItem(st.CartHash))
	dict.Add("changed", httpsfv.NewItem(st.CartChanged))
	dict.Add("acknowledged", httpsfv.NewItem(st.Acknowledged))
	dict.Add("items", httpsfv.NewItem(int64(len(st.Items))))
	dict.Add("units", httpsfv.NewItem(int64(units)))
	return httpsfv.Marshal(dict)
}

// CartStateSummary is the parsed form of the Cart-State header.
type CartStateSummary struct {
	Hash         string
	Changed      bool
	Acknowledged bool
	Items        int64
	Units        int64
}

// CheckoutBlocked mirrors model.CartState.CheckoutBlocked.
func (s CartStateSummary) CheckoutBlocked() bool {
	return s.Changed && !s.Acknowledged
}

// ParseCartState decodes a Cart-State header value. Unknown members are ignored.
func ParseCartState(header string) (CartStateSummary, error) {
	var out CartStateSummary
	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return out, err
	}
	for _, name := range dict.Names() {
		member, _ := dict.Get(name)
		item, ok := member.(httpsfv.Item)
		if !ok {
			continue
		}
		switch name {
		case "hash":
			out.Hash, _ = item.Value.(string)
		case "changed":
			out.Changed, _ = item.Value.(bool)
		case "acknowledged":
			out.Acknowledged, _ = item.Value.(bool)
		case "items":
			out.Items, _ = item.Value.(int64)
		case "units":
			out.Units, _ = item.Value.(int64)
		}
	}
	return out, nil
}

func (h *Handler) setCartState(w http.ResponseWriter, st model.CartState) {
	v, err := formatCartState(st)
	if err != nil {
		h.logger.Warn("failed to format cart state header", "error", err)
		return
	}
	w.Header().Set(CartStateHeader, v)
}
