// Package graphql implements the adapter interfaces against the storefront's
// GraphQL API. Every response is validated by the schema package before it is
// returned, so callers only ever see well-formed carts, products and credentials.
package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"io"
	"net/http"
	"strings"
	"time"

	gql "github.com/machinebox/graphql"

	"storefront/internal/adapter"
	"storefront/internal/model"
	"storefront/internal/schema"
	"storefront/internal/transport"
)

// =============================================================================
// STOREFRONT GRAPHQL CLIENT
// =============================================================================
//
// All operations POST a JSON document to a single endpoint. Authentication is
// a visitor bearer token attached by transport.BearerAuth; the register
// mutation is sent without one because the visitor has no token yet.
//
// machinebox/graphql decodes every response body regardless of status, so
// the client's transport rejects non-2xx responses first (statusError).
//
// Error mapping:
//   transport failure       → UPSTREAM_ERROR (502)
//   HTTP 401/403            → UNAUTHORIZED
//   HTTP 429                → RATE_LIMITED
//   other non-2xx           → UPSTREAM_ERROR
//   GraphQL errors[] entry  → VALIDATION_ERROR carrying the server message
//   malformed data payload  → INVALID_RESPONSE (schema package)
// =============================================================================

const (
	userAgent = "Storefront/1.0"

	serviceName = "storefront API"

	// machinebox/graphql prefixes the server errors[] messages it returns.
	errPrefix = "graphql: "

	// maxErrorBody caps how much of a failed response is kept for logging.
	maxErrorBody = 512
)

// Client is the storefront GraphQL client.
type Client struct {
	gql    *gql.Client
	logger *slog.Logger
}

// NewClient creates a client for the API at apiURL. httpClient carries the
// transport chain (Chrome TLS, bearer auth); nil uses a plain client.
func NewClient(apiURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if apiURL == "" {
		return nil, errors.New("api url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	hc := *httpClient
	hc.Transport = &statusTransport{base: httpClient.Transport}

	c := gql.NewClient(apiURL, gql.WithHTTPClient(&hc))
	c.Log = func(s string) { logger.Debug("graphql", "msg", s) }

	return &Client{gql: c, logger: logger}, nil
}

// NewHTTPClient builds the HTTP client used for API calls: optional Chrome TLS
// fingerprinting underneath bearer-token attachment from tokens.
func NewHTTPClient(timeout time.Duration, chromeTLS bool, tokens transport.TokenSource) *http.Client {
	var base http.RoundTripper = http.DefaultTransport
	if chromeTLS {
		base = transport.NewChromeTransport(timeout)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport.BearerAuth(base, tokens),
	}
}

// === Cart Operations ===

// AddItem implements adapter.CartService.
func (c *Client) AddItem(ctx context.Context, productID string, quantity int) (model.Cart, error) {
	raw, err := c.run(ctx, "addItem", addItemMutation, map[string]interface{}{
		"input": map[string]interface{}{"productId": productID, "quantity": quantity},
	})
	if err != nil {
		return model.Cart{}, err
	}
	return schema.ParseCart("addItem", raw)
}

// RemoveItem implements adapter.CartService.
func (c *Client) RemoveItem(ctx context.Context, cartItemID string) (model.Cart, error) {
	raw, err := c.run(ctx, "removeItem", removeItemMutation, map[string]interface{}{
		"input": map[string]interface{}{"cartItemId": cartItemID},
	})
	if err != nil {
		return model.Cart{}, err
	}
	return schema.ParseCart("removeItem", raw)
}

// UpdateItemQuantity implements adapter.CartService.
func (c *Client) UpdateItemQuantity(ctx context.Context, cartItemID string, quantity int) (model.Cart, error) {
	raw, err := c.run(ctx, "updateItemQuantity", updateItemQuantityMutation, map[string]interface{}{
		"input": map[string]interface{}{"cartItemId": cartItemID, "quantity": quantity},
	})
	if err != nil {
		return model.Cart{}, err
	}
	return schema.ParseCart("updateItemQuantity", raw)
}

// GetCart implements adapter.CartService.
func (c *Client) GetCart(ctx context.Context) (model.Cart, error) {
	raw, err := c.run(ctx, "getCart", getCartQuery, nil)
	if err != nil {
		return model.Cart{}, err
	}
	return schema.ParseGetCart(raw)
}

// === Catalog ===

// ListProducts implements adapter.Catalog.
func (c *Client) ListProducts(ctx context.Context) (model.ProductPage, error) {
	raw, err := c.run(ctx, "getProducts", getProductsQuery, nil)
	if err != nil {
		return model.ProductPage{}, err
	}
	return schema.ParseProducts(raw)
}

// === Visitor ===

// Register implements adapter.VisitorService.
func (c *Client) Register(ctx context.Context) (model.VisitorCredential, error) {
	raw, err := c.run(ctx, "register", registerMutation, nil)
	if err != nil {
		return model.VisitorCredential{}, err
	}
	return schema.ParseVisitor(raw)
}

// === Helpers ===

// run executes one document and returns the raw value of its top-level field.
// A missing field yields nil, which the schema parsers reject.
func (c *Client) run(ctx context.Context, field, document string, vars map[string]interface{}) (json.RawMessage, error) {
	req := gql.NewRequest(document)
	for k, v := range vars {
		req.Var(k, v)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	var data map[string]json.RawMessage
	err := c.gql.Run(ctx, req, &data)
	c.logger.Debug("graphql call",
		"operation", field,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			c.logger.Debug("graphql error response", "operation", field, "status", se.StatusCode, "body", se.Body)
		}
		return nil, parseError(field, err)
	}
	return data[field], nil
}

// statusError is a non-2xx response, raised before the body is decoded.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// statusTransport turns non-2xx responses into *statusError.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &statusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// parseError converts client errors to model.APIError.
func parseError(operation string, err error) error {
	var se *statusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusUnauthorized:
			return model.NewUnauthorizedError("storefront authentication failed")
		case http.StatusForbidden:
			return model.NewUnauthorizedError("storefront access denied")
		case http.StatusTooManyRequests:
			return model.NewRateLimitError(serviceName)
		default:
			return model.NewUpstreamError(serviceName, fmt.Errorf("%s: status %d", operation, se.StatusCode))
		}
	}

	msg := err.Error()
	if strings.HasPrefix(msg, errPrefix) {
		return model.NewValidationError(operation, strings.TrimPrefix(msg, errPrefix))
	}

	return model.NewUpstreamError(serviceName, fmt.Errorf("%s: %w", operation, err))
}

// Verify Client implements Storefront interface at compile time.
var _ adapter.Storefront = (*Client)(nil)
