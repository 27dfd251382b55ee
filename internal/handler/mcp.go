// MCP transport handler using the official MCP Go SDK.
// Exposes the cart and catalog operations as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront/internal/model"
)

// === MCP Tool Input Types ===

// EmptyInput is the input schema for tools without arguments.
type EmptyInput struct{}

// ProductInput identifies a product in the cart or catalog.
type ProductInput struct {
	ProductID string `json:"productId" jsonschema:"product ID,required"`
}

// UpdateQuantityInput is the input schema for update_quantity.
type UpdateQuantityInput struct {
	ProductID string `json:"productId" jsonschema:"product ID,required"`
	Quantity  int    `json:"quantity" jsonschema:"new quantity; 0 removes the item,required"`
}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Storefront cart. Browse products, manage the cart and " +
				"acknowledge server-side changes before checkout.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_products",
		Description: "List the product catalog with prices and stock.",
	}, h.mcpListProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the current cart, including any pending changes made by the server.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_item",
		Description: "Add one unit of a product. Adding a product already in the cart increments it.",
	}, h.mcpAddItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "decrease_item",
		Description: "Remove one unit of a product. The last unit removes the line.",
	}, h.mcpDecreaseItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_quantity",
		Description: "Set the quantity of a cart line. Quantities above stock are ignored.",
	}, h.mcpUpdateQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_item",
		Description: "Remove a product from the cart.",
	}, h.mcpRemoveItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Empty the local cart.",
	}, h.mcpClearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_cart",
		Description: "Reconcile the cart with the server and report reduced or unavailable items.",
	}, h.mcpSyncCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "acknowledge_changes",
		Description: "Accept pending server-side changes. Required before checkout when the cart changed.",
	}, h.mcpAcknowledge)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpListProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, *ProductsView, error) {
	page, err := h.catalog.ListProducts(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	view := productsView(page)
	return nil, &view, nil
}

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, *CartView, error) {
	return nil, cartView(h.store.Snapshot()), nil
}

func (h *Handler) mcpAddItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, *CartView, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("productId is required")
	}
	return h.mcpMutate(ctx, func(ctx context.Context) error {
		product, err := h.findProduct(ctx, input.ProductID)
		if err != nil {
			return err
		}
		return h.store.AddItem(ctx, product)
	})
}

func (h *Handler) mcpDecreaseItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, *CartView, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("productId is required")
	}
	return h.mcpMutate(ctx, func(ctx context.Context) error {
		return h.store.DecreaseItem(ctx, input.ProductID)
	})
}

func (h *Handler) mcpUpdateQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateQuantityInput,
) (*mcp.CallToolResult, *CartView, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("productId is required")
	}
	if input.Quantity < 0 {
		return nil, nil, fmt.Errorf("quantity must be >= 0")
	}
	return h.mcpMutate(ctx, func(ctx context.Context) error {
		return h.store.UpdateItemQuantity(ctx, input.ProductID, input.Quantity)
	})
}

func (h *Handler) mcpRemoveItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, *CartView, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("productId is required")
	}
	return h.mcpMutate(ctx, func(ctx context.Context) error {
		return h.store.RemoveItem(ctx, input.ProductID)
	})
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, *CartView, error) {
	return h.mcpApply(ctx, h.store.ClearCart)
}

func (h *Handler) mcpSyncCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, *CartView, error) {
	return h.mcpMutate(ctx, h.store.Reconcile)
}

func (h *Handler) mcpAcknowledge(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, *CartView, error) {
	return h.mcpApply(ctx, h.store.Acknowledge)
}

func (h *Handler) mcpMutate(ctx context.Context, op func(ctx context.Context) error) (*mcp.CallToolResult, *CartView, error) {
	if !h.store.Snapshot().HasToken {
		return nil, nil, h.mcpError(model.NewNoTokenError())
	}
	return h.mcpApply(ctx, op)
}

// mcpApply runs op without the token check; clear and acknowledge are local.
func (h *Handler) mcpApply(ctx context.Context, op func(ctx context.Context) error) (*mcp.CallToolResult, *CartView, error) {
	if err := op(ctx); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, cartView(h.store.Snapshot()), nil
}

// mcpError converts store and catalog errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
