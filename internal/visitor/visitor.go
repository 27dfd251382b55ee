// Package visitor manages the anonymous shopper identity. A visitor is
// registered once; the credential is cached and its token is attached to
// every subsequent API call.
package visitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/adapter"
	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/schema"
	"storefront/internal/storage"
)

const (
	// TokenKey is the storage key of the cached credential.
	TokenKey = "visitor-token"

	// TokenTTL bounds how long a cached credential is reused.
	TokenTTL = 7 * 24 * time.Hour
)

// Registrar issues and caches the visitor credential.
//
// Ensure serializes registrations so concurrent first calls register once.
// Token never registers: it is read by the HTTP transport on every request,
// including the register call itself, and must not wait on Ensure.
type Registrar struct {
	svc      adapter.VisitorService
	kv       storage.KV
	notifier notify.Notifier
	logger   *slog.Logger

	register sync.Mutex

	mu     sync.RWMutex
	cached model.VisitorCredential
}

// NewRegistrar creates a registrar. kv may be nil, in which case the
// credential only lives as long as the process.
func NewRegistrar(svc adapter.VisitorService, kv storage.KV, notifier notify.Notifier, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{svc: svc, kv: kv, notifier: notifier, logger: logger}
}

// Ensure returns the cached credential, registering a new visitor when none
// exists. Registration failures are reported to the notifier and returned.
func (r *Registrar) Ensure(ctx context.Context) (model.VisitorCredential, error) {
	r.register.Lock()
	defer r.register.Unlock()

	if cred, ok := r.lookup(ctx); ok {
		return cred, nil
	}

	cred, err := r.svc.Register(ctx)
	if err != nil {
		notify.Error(ctx, r.notifier, "Failed to register visitor: network/server error")
		return model.VisitorCredential{}, err
	}
	if err := schema.ValidateVisitor(cred); err != nil {
		notify.Error(ctx, r.notifier, "Failed to register visitor: invalid response")
		return model.VisitorCredential{}, err
	}

	r.store(ctx, cred)
	r.logger.Info("visitor registered", "visitor_id", cred.VisitorID, "cart_id", cred.CartID)
	return cred, nil
}

// Seed installs a pre-issued token, skipping registration.
func (r *Registrar) Seed(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("empty visitor token")
	}
	r.store(ctx, model.VisitorCredential{Token: token})
	return nil
}

// Token returns the current bearer token, or "" before registration.
// Implements transport.TokenSource.
func (r *Registrar) Token(ctx context.Context) (string, error) {
	cred, _ := r.lookup(ctx)
	return cred.Token, nil
}

// Forget drops the cached credential so the next Ensure registers again.
func (r *Registrar) Forget(ctx context.Context) error {
	r.mu.Lock()
	r.cached = model.VisitorCredential{}
	r.mu.Unlock()

	if r.kv == nil {
		return nil
	}
	return r.kv.Delete(ctx, TokenKey)
}

// lookup checks memory, then the cache store.
func (r *Registrar) lookup(ctx context.Context) (model.VisitorCredential, bool) {
	r.mu.RLock()
	cred := r.cached
	r.mu.RUnlock()
	if !cred.Empty() {
		return cred, true
	}
	if r.kv == nil {
		return model.VisitorCredential{}, false
	}

	raw, err := r.kv.Get(ctx, TokenKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("reading cached visitor credential", "error", err)
		}
		return model.VisitorCredential{}, false
	}
	if err := json.Unmarshal(raw, &cred); err != nil || cred.Empty() {
		r.logger.Warn("ignoring unreadable visitor credential", "error", err)
		return model.VisitorCredential{}, false
	}

	r.mu.Lock()
	r.cached = cred
	r.mu.Unlock()
	return cred, true
}

func (r *Registrar) store(ctx context.Context, cred model.VisitorCredential) {
	r.mu.Lock()
	r.cached = cred
	r.mu.Unlock()

	if r.kv == nil {
		return
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		r.logger.Warn("encoding visitor credential", "error", err)
		return
	}
	if err := r.kv.Set(ctx, TokenKey, raw, TokenTTL); err != nil {
		r.logger.Warn("caching visitor credential", "error", err)
	}
}
