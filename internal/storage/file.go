package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File is a KV backed by a single JSON document on disk. Every write
// rewrites the document through a temp file and rename, so a crash leaves
// either the old or the new contents.
type File struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

type fileEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// NewFile returns a store persisting to path. The parent directory is
// created on first write.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("storage file path is required")
	}
	return &File{path: path, now: time.Now}, nil
}

// Get implements KV.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return nil, err
	}
	e, ok := entries[key]
	if !ok || (!e.ExpiresAt.IsZero() && !f.now().Before(e.ExpiresAt)) {
		return nil, ErrNotFound
	}
	return e.Value, nil
}

// Set implements KV.
func (f *File) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	e := fileEntry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = f.now().Add(ttl)
	}
	entries[key] = e
	return f.write(entries)
}

// Delete implements KV.
func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return f.write(entries)
}

func (f *File) read() (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return entries, nil
}

func (f *File) write(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

var _ KV = (*File)(nil)
