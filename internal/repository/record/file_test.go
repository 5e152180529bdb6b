package record

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml"))

	rec, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, rec)
}

// TestFileRepository_Corrupt verifies undecodable contents map to ErrCorrupt,
// which agents treat as "never updated".
func TestFileRepository_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))

	repo := NewFileRepository(path)

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrCorrupt)

	// Parseable but empty is corrupt too: a record without an instant says nothing.
	require.NoError(t, os.WriteFile(path, []byte("image_ref: docker.io/app\n"), 0o600))

	_, err = repo.Load(context.Background())
	require.ErrorIs(t, err, ErrCorrupt)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns an equal record.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.yaml")
	repo := NewFileRepository(path)

	want := &Record{
		AppliedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ImageRef:  "imported:abcdef",
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.True(t, want.AppliedAt.Equal(got.AppliedAt))
	require.Equal(t, want.ImageRef, got.ImageRef)

	// No temp leftovers next to the record.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestFileRepository_Overwrite verifies the commit replaces the previous record.
func TestFileRepository_Overwrite(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.yaml"))
	ctx := context.Background()

	first := &Record{AppliedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ImageRef: "imported:one"}
	second := &Record{AppliedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), ImageRef: "imported:two"}

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, second.AppliedAt.Equal(got.AppliedAt))
	require.Equal(t, second.ImageRef, got.ImageRef)
}
