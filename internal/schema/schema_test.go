package schema

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
)

const validCart = `{
	"_id": "cart-1",
	"hash": "h-1",
	"items": [
		{
			"_id": "ci-1",
			"product": {"_id": "p1", "title": "Widget", "cost": 12.5, "availableQuantity": 4},
			"quantity": 2
		}
	]
}`

func TestParseCart_Valid(t *testing.T) {
	cart, err := ParseCart("addItem", []byte(validCart))
	require.NoError(t, err)

	assert.Equal(t, "cart-1", cart.ID)
	assert.Equal(t, "h-1", cart.Hash)
	require.Len(t, cart.Items, 1)

	item := cart.Items[0]
	assert.Equal(t, "ci-1", item.ID)
	assert.Equal(t, "p1", item.ProductID())
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 4, item.Product.AvailableQuantity)
	assert.False(t, item.Product.IsArchived, "absent isArchived defaults to false")
	assert.True(t, item.Product.Cost.Equal(decimal.RequireFromString("12.5")))
}

func TestParseCart_EmptyItems(t *testing.T) {
	cart, err := ParseCart("removeItem", []byte(`{"_id":"cart-1","hash":"h-2","items":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
}

func TestParseCart_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantMsg string
	}{
		{"null payload", `null`, "missing payload"},
		{"empty payload", ``, "missing payload"},
		{"missing hash", `{"_id":"c","items":[]}`, "hash: is required"},
		{"null items", `{"_id":"c","hash":"h","items":null}`, "items: is required"},
		{"zero quantity", `{"_id":"c","hash":"h","items":[{"_id":"ci","product":{"_id":"p","title":"t","cost":1,"availableQuantity":1},"quantity":0}]}`, "quantity: must be at least 1"},
		{"missing item id", `{"_id":"c","hash":"h","items":[{"product":{"_id":"p","title":"t","cost":1,"availableQuantity":1},"quantity":1}]}`, "_id: is required"},
		{"negative stock", `{"_id":"c","hash":"h","items":[{"_id":"ci","product":{"_id":"p","title":"t","cost":1,"availableQuantity":-1},"quantity":1}]}`, "availableQuantity: must be >= 0"},
		{"empty hash", `{"_id":"c","hash":"","items":[]}`, "hash: must be at least 1"},
		{"empty item id", `{"_id":"c","hash":"h","items":[{"_id":"","product":{"_id":"p","title":"t","cost":1,"availableQuantity":1},"quantity":1}]}`, "_id: must be at least 1"},
		{"negative cost", `{"_id":"c","hash":"h","items":[{"_id":"ci","product":{"_id":"p","title":"t","cost":-3,"availableQuantity":1},"quantity":1}]}`, "cost: must be >= 0"},
		{"wrong type", `{"_id":"c","hash":"h","items":[{"_id":"ci","product":{"_id":"p","title":"t","cost":1,"availableQuantity":"many"},"quantity":1}]}`, "cannot unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCart("updateItemQuantity", []byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidPayload))

			var apiErr *model.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, "INVALID_RESPONSE", apiErr.Code)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseGetCart_RequiresTimestamps(t *testing.T) {
	_, err := ParseGetCart([]byte(validCart))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "createdAt: is required")

	full := `{"_id":"cart-1","hash":"h","items":[],"createdAt":"2026-01-01T00:00:00Z","updatedAt":"2026-01-02T00:00:00Z"}`
	cart, err := ParseGetCart([]byte(full))
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01T00:00:00Z", cart.CreatedAt)
	assert.Equal(t, "2026-01-02T00:00:00Z", cart.UpdatedAt)
}

func TestParseProducts(t *testing.T) {
	page, err := ParseProducts([]byte(`{
		"total": 2,
		"products": [
			{"_id":"p1","title":"Widget","cost":"9.99","availableQuantity":3,"isArchived":false},
			{"_id":"p2","title":"Gadget","cost":0,"availableQuantity":0,"isArchived":true}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Products, 2)
	assert.True(t, page.Products[0].Available())
	assert.True(t, page.Products[1].IsArchived)
	assert.False(t, page.Products[1].Available())

	_, err = ParseProducts([]byte(`{"products":[]}`))
	assert.ErrorIs(t, err, model.ErrInvalidPayload)
}

func TestParseVisitor(t *testing.T) {
	cred, err := ParseVisitor([]byte(`{"_id":"v1","token":"tok","cartId":"cart-1"}`))
	require.NoError(t, err)
	assert.Equal(t, model.VisitorCredential{VisitorID: "v1", Token: "tok", CartID: "cart-1"}, cred)

	_, err = ParseVisitor([]byte(`{"_id":"v1","token":"","cartId":"cart-1"}`))
	assert.ErrorIs(t, err, model.ErrInvalidPayload)

	_, err = ParseVisitor([]byte(`{"_id":"v1","cartId":"cart-1"}`))
	assert.ErrorIs(t, err, model.ErrInvalidPayload)
}

func TestValidateCart(t *testing.T) {
	ok := model.Cart{
		ID:   "cart-1",
		Hash: "h",
		Items: []model.CartItem{
			{ID: "ci-1", Product: model.Product{ID: "p1", Title: "Widget", Cost: decimal.NewFromInt(2), AvailableQuantity: 1}, Quantity: 1},
		},
	}
	assert.NoError(t, ValidateCart(ok))
	assert.NoError(t, ValidateCart(model.Cart{ID: "cart-1", Hash: "h"}), "nil items is an empty cart")

	tests := []struct {
		name    string
		mutate  func(c *model.Cart)
		wantMsg string
	}{
		{"zero quantity", func(c *model.Cart) { c.Items[0].Quantity = 0 }, "items[0].quantity: must be at least 1"},
		{"missing cart item id", func(c *model.Cart) { c.Items[0].ID = "" }, "items[0]._id: is required"},
		{"missing title", func(c *model.Cart) { c.Items[0].Product.Title = "" }, "items[0].product.title: is required"},
		{"missing product id", func(c *model.Cart) { c.Items[0].Product.ID = "" }, "items[0].product._id: is required"},
		{"negative stock", func(c *model.Cart) { c.Items[0].Product.AvailableQuantity = -1 }, "availableQuantity: must be >= 0"},
		{"missing hash", func(c *model.Cart) { c.Hash = "" }, "hash: is required"},
		{"missing cart id", func(c *model.Cart) { c.ID = "" }, "_id: is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := ok
			bad.Items = model.CloneItems(ok.Items)
			tt.mutate(&bad)

			err := ValidateCart(bad)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidPayload)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateItems(t *testing.T) {
	item := model.CartItem{ID: "ci-1", Product: model.Product{ID: "p1", Title: "Widget", Cost: decimal.NewFromInt(2), AvailableQuantity: 1}, Quantity: 1}
	assert.NoError(t, ValidateItems(nil))
	assert.NoError(t, ValidateItems([]model.CartItem{item}))

	untitled := item
	untitled.Product.Title = ""
	err := ValidateItems([]model.CartItem{item, untitled})
	assert.ErrorIs(t, err, model.ErrInvalidPayload)
	assert.Contains(t, err.Error(), "items[1].product.title: is required")
}

func TestValidateVisitor(t *testing.T) {
	assert.NoError(t, ValidateVisitor(model.VisitorCredential{VisitorID: "v", Token: "t", CartID: "c"}))
	assert.ErrorIs(t, ValidateVisitor(model.VisitorCredential{VisitorID: "v", CartID: "c"}), model.ErrInvalidPayload)
	assert.ErrorIs(t, ValidateVisitor(model.VisitorCredential{Token: "t", CartID: "c"}), model.ErrInvalidPayload)
}
