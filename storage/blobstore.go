package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore persists extracted artifacts on the local filesystem under a
// single root directory and serves them back through a public base URL.
// Keys use forward slashes; nested key prefixes become subdirectories.
type BlobStore struct {
	root    string
	baseURL string
}

// NewBlobStore creates the root directory if needed.
func NewBlobStore(root, baseURL string) (*BlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob storage root: %w", err)
	}
	return &BlobStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes a blob to disk. The write goes through a temp file and
// rename so readers never observe partial content.
func (b *BlobStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize blob: %w", err)
	}
	return nil
}

// DurableURL returns the public URL of a stored blob.
func (b *BlobStore) DurableURL(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := b.path(key); err != nil {
		return "", err
	}
	return b.baseURL + "/" + key, nil
}

// Root returns the storage root directory, for serving blobs statically.
func (b *BlobStore) Root() string {
	return b.root
}

// path maps a key to a filesystem path, rejecting keys that would escape
// the storage root.
func (b *BlobStore) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty blob key")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(b.root, clean), nil
}
