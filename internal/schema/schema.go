// Package schema validates the shape of server responses before anything
// downstream trusts them. Every parser decodes raw JSON into a wire struct,
// runs struct validation, and converts to model types; a failure returns a
// *model.APIError (INVALID_RESPONSE) instead of a partially filled value.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"storefront/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	// Compare decimals numerically so cost can carry gte/lte rules.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Pointer fields distinguish "absent" from the zero value: absent fails
// `required`, an explicit 0 passes. Ids, titles and the hash must also be
// non-empty.

type productPayload struct {
	ID                *string          `json:"_id" validate:"required,min=1"`
	Title             *string          `json:"title" validate:"required,min=1"`
	Cost              *decimal.Decimal `json:"cost" validate:"required,gte=0"`
	AvailableQuantity *int             `json:"availableQuantity" validate:"required,gte=0"`
	IsArchived        *bool            `json:"isArchived"`
}

type cartItemPayload struct {
	ID        *string        `json:"_id" validate:"required,min=1"`
	CartID    string         `json:"cartId"`
	Product   productPayload `json:"product"`
	Quantity  *int           `json:"quantity" validate:"required,min=1"`
	UpdatedAt string         `json:"updatedAt"`
	AddedAt   string         `json:"addedAt"`
}

type cartPayload struct {
	ID    *string           `json:"_id" validate:"required,min=1"`
	Hash  *string           `json:"hash" validate:"required,min=1"`
	Items []cartItemPayload `json:"items" validate:"required,dive"`
}

// getCartPayload is the full cart returned by the getCart query, which also
// carries timestamps the mutation responses omit.
type getCartPayload struct {
	cartPayload
	CreatedAt *string `json:"createdAt" validate:"required"`
	UpdatedAt *string `json:"updatedAt" validate:"required"`
}

type productsPayload struct {
	Total    *int             `json:"total" validate:"required,gte=0"`
	Products []productPayload `json:"products" validate:"required,dive"`
}

type visitorPayload struct {
	ID     *string `json:"_id" validate:"required,min=1"`
	Token  *string `json:"token" validate:"required,min=1"`
	CartID *string `json:"cartId" validate:"required,min=1"`
}

// ParseCart validates a cart returned by the addItem, removeItem and
// updateItemQuantity mutations.
func ParseCart(name string, raw []byte) (model.Cart, error) {
	var p cartPayload
	if err := decode(name, raw, &p); err != nil {
		return model.Cart{}, err
	}
	return p.toModel(), nil
}

// ParseGetCart validates the getCart query result.
func ParseGetCart(raw []byte) (model.Cart, error) {
	var p getCartPayload
	if err := decode("getCart", raw, &p); err != nil {
		return model.Cart{}, err
	}
	cart := p.cartPayload.toModel()
	cart.CreatedAt = *p.CreatedAt
	cart.UpdatedAt = *p.UpdatedAt
	return cart, nil
}

// ParseProducts validates the getProducts query result.
func ParseProducts(raw []byte) (model.ProductPage, error) {
	var p productsPayload
	if err := decode("getProducts", raw, &p); err != nil {
		return model.ProductPage{}, err
	}
	page := model.ProductPage{
		Total:    *p.Total,
		Products: make([]model.Product, len(p.Products)),
	}
	for i, prod := range p.Products {
		page.Products[i] = prod.toModel()
	}
	return page, nil
}

// ParseVisitor validates the register mutation result.
func ParseVisitor(raw []byte) (model.VisitorCredential, error) {
	var p visitorPayload
	if err := decode("register", raw, &p); err != nil {
		return model.VisitorCredential{}, err
	}
	return model.VisitorCredential{
		VisitorID: *p.ID,
		Token:     *p.Token,
		CartID:    *p.CartID,
	}, nil
}

// ValidateCart checks an already-typed cart against the rules on model.Cart:
// cart id, hash, item ids and titles set, quantities >= 1. The store runs it
// on every cart it receives from a CartService before committing.
func ValidateCart(cart model.Cart) error {
	if err := validate.Struct(cart); err != nil {
		return model.NewSchemaError("cart", formatValidationErrors(err))
	}
	return nil
}

// ValidateItems checks persisted line items. A rehydrated cart may have an
// empty hash (emptied carts clear it), so only the items are checked.
func ValidateItems(items []model.CartItem) error {
	for i, item := range items {
		if err := validate.Struct(item); err != nil {
			return model.NewSchemaError("cart", fmt.Errorf("items[%d].%w", i, formatValidationErrors(err)))
		}
	}
	return nil
}

func decode(name string, raw []byte, dest interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return model.NewSchemaError(name, errors.New("missing payload"))
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return model.NewSchemaError(name, err)
	}
	if err := validate.Struct(dest); err != nil {
		return model.NewSchemaError(name, formatValidationErrors(err))
	}
	return nil
}

// formatValidationErrors flattens validator errors into "path: rule" pairs.
func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", fieldPath(fe), rule(fe)))
	}
	return errors.New(strings.Join(parts, "; "))
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func rule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	}
	return "is invalid"
}

func (p productPayload) toModel() model.Product {
	prod := model.Product{
		ID:                *p.ID,
		Title:             *p.Title,
		Cost:              *p.Cost,
		AvailableQuantity: *p.AvailableQuantity,
	}
	if p.IsArchived != nil {
		prod.IsArchived = *p.IsArchived
	}
	return prod
}

func (p cartPayload) toModel() model.Cart {
	cart := model.Cart{
		ID:    *p.ID,
		Hash:  *p.Hash,
		Items: make([]model.CartItem, len(p.Items)),
	}
	for i, item := range p.Items {
		cart.Items[i] = model.CartItem{
			ID:        *item.ID,
			CartID:    item.CartID,
			Product:   item.Product.toModel(),
			Quantity:  *item.Quantity,
			AddedAt:   item.AddedAt,
			UpdatedAt: item.UpdatedAt,
		}
	}
	return cart
}

// ValidateVisitor re-checks a credential obtained from any VisitorService
// or read back from the credential cache.
func ValidateVisitor(cred model.VisitorCredential) error {
	if err := validate.Struct(cred); err != nil {
		return model.NewSchemaError("register", formatValidationErrors(err))
	}
	return nil
}
