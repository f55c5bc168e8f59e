package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStore_UploadAndDurableURL(t *testing.T) {
	store, err := NewBlobStore(t.TempDir(), "http://localhost:8080/blobs/")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "run-1/shot.png", []byte("png-bytes"), "image/png"))

	content, err := os.ReadFile(filepath.Join(store.Root(), "run-1", "shot.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), content)

	url, err := store.DurableURL(ctx, "run-1/shot.png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/blobs/run-1/shot.png", url)
}

func TestBlobStore_OverwriteReplacesContent(t *testing.T) {
	store, err := NewBlobStore(t.TempDir(), "http://localhost:8080/blobs")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "key.txt", []byte("first"), "text/plain"))
	require.NoError(t, store.Upload(ctx, "key.txt", []byte("second"), "text/plain"))

	content, err := os.ReadFile(filepath.Join(store.Root(), "key.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), content)
}

func TestBlobStore_RejectsUnsafeKeys(t *testing.T) {
	store, err := NewBlobStore(t.TempDir(), "http://localhost:8080/blobs")
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		key  string
	}{
		{name: "empty key", key: ""},
		{name: "parent traversal", key: "../escape.txt"},
		{name: "nested traversal", key: "a/../../escape.txt"},
		{name: "absolute path", key: "/etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.Upload(ctx, tt.key, []byte("x"), "text/plain"))

			_, err := store.DurableURL(ctx, tt.key)
			assert.Error(t, err)
		})
	}
}

func TestBlobStore_CancelledContext(t *testing.T) {
	store, err := NewBlobStore(t.TempDir(), "http://localhost:8080/blobs")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Upload(ctx, "key.txt", []byte("x"), "text/plain"), context.Canceled)
}
