package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// objectPermissions is the file mode for stored release objects.
const objectPermissions = 0o644

// FileBackend is a store rooted at a local directory. It serves air-gapped
// setups where releases arrive on mounted media, and it is the workhorse of
// the test suite.
type FileBackend struct {
	// dir is the project directory holding the release objects.
	dir string
}

// NewFileBackend creates a file store rooted at the given project directory.
// The directory is created on first write, not here, so a read-only device
// can point at media it cannot modify.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: filepath.Clean(dir)}
}

// Fetch reads an object from the project directory.
func (b *FileBackend) Fetch(ctx context.Context, object string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(b.dir, filepath.Clean(object)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", object, ErrObjectNotFound)
		}

		return nil, fmt.Errorf("read object %s: %w", object, err)
	}

	return data, nil
}

// Store writes an object via a temporary file and rename, so a concurrent
// Fetch sees either the old or the new content, never a torn write.
func (b *FileBackend) Store(ctx context.Context, object string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(b.dir, object+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}

	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write object %s: %w", object, err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close object %s: %w", object, err)
	}

	if err = os.Chmod(tmpName, objectPermissions); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("chmod object %s: %w", object, err)
	}

	if err = os.Rename(tmpName, filepath.Join(b.dir, filepath.Clean(object))); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("publish object %s: %w", object, err)
	}

	return nil
}

// Name returns a short identifier for logging.
func (b *FileBackend) Name() string {
	return "file:" + b.dir
}
