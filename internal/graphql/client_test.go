package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
	"storefront/internal/transport"
)

type recordedRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
	Auth      string                 `json:"-"`
}

func newTestClient(t *testing.T, status int, body string) (*Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	httpClient := NewHTTPClient(5*time.Second, false, transport.StaticToken("tok-1"))
	c, err := NewClient(srv.URL, httpClient, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c, rec
}

const cartJSON = `{"_id":"cart-1","hash":"h-2","items":[
	{"_id":"ci-1","quantity":1,"product":{"_id":"p1","title":"Widget","cost":4.5,"availableQuantity":3}}
]}`

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("", nil, nil)
	assert.Error(t, err)
}

func TestAddItem(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"data":{"addItem":`+cartJSON+`}}`)

	cart, err := c.AddItem(context.Background(), "p1", 1)
	require.NoError(t, err)

	assert.Equal(t, "h-2", cart.Hash)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "ci-1", cart.Items[0].ID)

	assert.Equal(t, "Bearer tok-1", rec.Auth)
	assert.Contains(t, rec.Query, "addItem(input: $input)")
	input := rec.Variables["input"].(map[string]interface{})
	assert.Equal(t, "p1", input["productId"])
	assert.Equal(t, float64(1), input["quantity"])
}

func TestRemoveItem(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"data":{"removeItem":{"_id":"cart-1","hash":"h-3","items":[]}}}`)

	cart, err := c.RemoveItem(context.Background(), "ci-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	input := rec.Variables["input"].(map[string]interface{})
	assert.Equal(t, "ci-1", input["cartItemId"])
}

func TestUpdateItemQuantity(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"data":{"updateItemQuantity":`+cartJSON+`}}`)

	_, err := c.UpdateItemQuantity(context.Background(), "ci-1", 2)
	require.NoError(t, err)

	input := rec.Variables["input"].(map[string]interface{})
	assert.Equal(t, "ci-1", input["cartItemId"])
	assert.Equal(t, float64(2), input["quantity"])
}

func TestGetCart(t *testing.T) {
	body := `{"data":{"getCart":{"_id":"cart-1","hash":"h","items":[],"createdAt":"2026-01-01","updatedAt":"2026-01-02"}}}`
	c, _ := newTestClient(t, http.StatusOK, body)

	cart, err := c.GetCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", cart.CreatedAt)
}

func TestListProducts(t *testing.T) {
	body := `{"data":{"getProducts":{"total":1,"products":[{"_id":"p1","title":"Widget","cost":"1.25","availableQuantity":2,"isArchived":false}]}}}`
	c, _ := newTestClient(t, http.StatusOK, body)

	page, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "1.25", page.Products[0].Cost.String())
}

func TestRegister(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"data":{"register":{"_id":"v1","token":"t","cartId":"c1"}}}`)

	cred, err := c.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t", cred.Token)
	assert.Contains(t, rec.Query, "register")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantErr  error
	}{
		{"unauthorized", http.StatusUnauthorized, `not json`, "UNAUTHORIZED", model.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ``, "UNAUTHORIZED", model.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ``, "RATE_LIMITED", model.ErrRateLimited},
		{"unauthorized json body", http.StatusUnauthorized, `{"message":"nope"}`, "UNAUTHORIZED", model.ErrUnauthorized},
		{"rate limited with errors", http.StatusTooManyRequests, `{"errors":[{"message":"slow down"}]}`, "RATE_LIMITED", model.ErrRateLimited},
		{"server error", http.StatusInternalServerError, `<html>`, "UPSTREAM_ERROR", model.ErrUpstreamError},
		{"bad gateway json", http.StatusBadGateway, `{"data":null}`, "UPSTREAM_ERROR", model.ErrUpstreamError},
		{"graphql error", http.StatusOK, `{"errors":[{"message":"Not enough stock"}]}`, "VALIDATION_ERROR", model.ErrInvalidRequest},
		{"schema mismatch", http.StatusOK, `{"data":{"addItem":{"_id":"cart-1","items":[]}}}`, "INVALID_RESPONSE", model.ErrInvalidPayload},
		{"missing field", http.StatusOK, `{"data":{}}`, "INVALID_RESPONSE", model.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.status, tt.body)

			_, err := c.AddItem(context.Background(), "p1", 1)
			require.Error(t, err)

			var apiErr *model.APIError
			require.True(t, errors.As(err, &apiErr), "want *model.APIError, got %T", err)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStatusMappingOnQueries(t *testing.T) {
	tests := []struct {
		status   int
		wantCode string
	}{
		{http.StatusUnauthorized, "UNAUTHORIZED"},
		{http.StatusTooManyRequests, "RATE_LIMITED"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, tt.status, `{"message":"nope"}`)

			_, err := c.GetCart(context.Background())
			var apiErr *model.APIError
			require.True(t, errors.As(err, &apiErr), "want *model.APIError, got %T", err)
			assert.Equal(t, tt.wantCode, apiErr.Code)

			_, err = c.ListProducts(context.Background())
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestNewClient_KeepsCallerTransport(t *testing.T) {
	httpClient := NewHTTPClient(time.Second, false, transport.StaticToken("tok"))
	before := httpClient.Transport

	_, err := NewClient("http://localhost", httpClient, nil)
	require.NoError(t, err)
	assert.Same(t, before, httpClient.Transport, "caller's client must not be modified")
}

func TestGraphQLErrorMessage(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{"errors":[{"message":"Not enough stock"}]}`)

	_, err := c.UpdateItemQuantity(context.Background(), "ci-1", 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not enough stock")
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, nil, nil)
	require.NoError(t, err)

	_, err = c.GetCart(context.Background())
	assert.ErrorIs(t, err, model.ErrUpstreamError)
}
