package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRedisFromClient(client)
}

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "k", []byte("v1"), 0))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, kv.Set(ctx, "k", []byte("v2"), 0))
	got, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, kv.Delete(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, kv.Delete(ctx, "never-set"), "deleting a missing key is not an error")
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestMemory_TTL(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "token", []byte("t"), time.Hour))

	now = now.Add(59 * time.Minute)
	_, err := m.Get(ctx, "token")
	assert.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = m.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_CopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	got, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestFile(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "nested", "store.json"))
	require.NoError(t, err)
	exerciseKV(t, f)
}

func TestFile_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	first, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", []byte(`{"a":1}`), 0))

	second, err := NewFile(path)
	require.NoError(t, err)
	got, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	assert.Empty(t, matches, "temp files should be cleaned up")
}

func TestFile_TTL(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, f.Set(ctx, "k", []byte("v"), time.Minute))
	now = now.Add(2 * time.Minute)

	_, err = f.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFile_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	f, err := NewFile(path)
	require.NoError(t, err)
	_, err = f.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewFile_RequiresPath(t *testing.T) {
	_, err := NewFile("")
	assert.Error(t, err)
}

func TestRedis(t *testing.T) {
	_, r := setupTestRedis(t)
	exerciseKV(t, r)
}

func TestRedis_NamespacesKeys(t *testing.T) {
	mr, r := setupTestRedis(t)
	require.NoError(t, r.Set(context.Background(), "visitor-token", []byte("t"), 0))

	assert.True(t, mr.Exists("storefront:visitor-token"))
	assert.False(t, mr.Exists("visitor-token"))
}

func TestRedis_TTL(t *testing.T) {
	mr, r := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("storefront:k"))

	mr.FastForward(2 * time.Minute)
	_, err := r.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r, err := NewRedis(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer r.Close()
	assert.NoError(t, r.Ping(ctx))

	_, err = NewRedis(ctx, "")
	assert.Error(t, err)

	_, err = NewRedis(ctx, "not-a-url")
	assert.Error(t, err)
}
