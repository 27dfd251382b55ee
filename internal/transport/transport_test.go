package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name       string
		src        TokenSource
		wantHeader string
	}{
		{"token attached", StaticToken("tok-123"), "Bearer tok-123"},
		{"empty token omits header", StaticToken(""), ""},
		{"nil source omits header", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
			}))
			defer srv.Close()

			client := &http.Client{Transport: BearerAuth(nil, tt.src)}
			req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("Do() error: %v", err)
			}
			resp.Body.Close()

			if got != tt.wantHeader {
				t.Errorf("Authorization = %q, want %q", got, tt.wantHeader)
			}
			if req.Header.Get("Authorization") != "" {
				t.Error("caller's request must not be modified")
			}
		})
	}
}

func TestBearerAuth_TokenError(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	src := TokenFunc(func(context.Context) (string, error) {
		return "", errors.New("store unavailable")
	})
	client := &http.Client{Transport: BearerAuth(nil, src)}

	_, err := client.Get(srv.URL)
	if err == nil {
		t.Fatal("expected error when token lookup fails")
	}
	if called {
		t.Error("request should not reach the server without a resolvable token")
	}
}

func TestBearerAuth_TokenReadPerRequest(t *testing.T) {
	token := ""
	src := TokenFunc(func(context.Context) (string, error) { return token, nil })

	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	client := &http.Client{Transport: BearerAuth(nil, src)}
	for _, tok := range []string{"", "late-token"} {
		token = tok
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		resp.Body.Close()
	}

	if len(seen) != 2 || seen[0] != "" || seen[1] != "Bearer late-token" {
		t.Errorf("headers = %v, want [\"\" \"Bearer late-token\"]", seen)
	}
}
