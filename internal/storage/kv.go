// Package storage persists small client-side records: the cached visitor
// credential and the cart state. Backends implement KV; StateRepository
// layers the versioned cart record on top.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by KV.Get when the key is absent or expired.
var ErrNotFound = errors.New("storage: key not found")

// KV is a minimal byte-valued key-value store with optional expiry.
// A zero ttl means the value never expires.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Backend names accepted by config.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)
