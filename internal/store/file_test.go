package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFileBackend_NotFound verifies Fetch maps a missing object to ErrObjectNotFound.
func TestFileBackend_NotFound(t *testing.T) {
	t.Parallel()

	b := NewFileBackend(t.TempDir())

	_, err := b.Fetch(context.Background(), "version.yaml")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

// TestFileBackend_StoreFetch_Roundtrip writes and reads back an object.
func TestFileBackend_StoreFetch_Roundtrip(t *testing.T) {
	t.Parallel()

	// Directory is created lazily by the first write.
	b := NewFileBackend(filepath.Join(t.TempDir(), "edge-fleet"))
	ctx := context.Background()

	want := []byte("bundle bytes")
	require.NoError(t, b.Store(ctx, "bundle.tar", want))

	got, err := b.Fetch(ctx, "bundle.tar")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestFileBackend_Overwrite ensures a second write fully replaces the object.
func TestFileBackend_Overwrite(t *testing.T) {
	t.Parallel()

	b := NewFileBackend(t.TempDir())
	ctx := context.Background()

	require.NoError(t, b.Store(ctx, "version.yaml", []byte("old release, long content")))
	require.NoError(t, b.Store(ctx, "version.yaml", []byte("new")))

	got, err := b.Fetch(ctx, "version.yaml")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
}

// TestFileBackend_CanceledContext fails fast on a dead context.
func TestFileBackend_CanceledContext(t *testing.T) {
	t.Parallel()

	b := NewFileBackend(t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Fetch(ctx, "version.yaml")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, b.Store(ctx, "version.yaml", nil), context.Canceled)
}
