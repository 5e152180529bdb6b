package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otakit/courier/internal/config"
)

// Record is the device's durable belief about the currently applied release.
// It is written exactly once per successful update, at the commit point,
// never speculatively.
type Record struct {
	// AppliedAt is the manifest instant of the applied release.
	AppliedAt time.Time `yaml:"applied_at"`
	// ImageRef is the image reference the runtime assigned when the bundle
	// was imported. Self-healing re-creates the unit from it without any
	// network fetch.
	ImageRef string `yaml:"image_ref"`
}

// Repository defines persistence operations for the local version record.
type Repository interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error
}

var (
	// ErrNotFound is returned when the record file does not exist yet.
	ErrNotFound = errors.New("version record not found")
	// ErrCorrupt is returned when the record file exists but cannot be
	// decoded. Callers treat it the same as a missing record: the device
	// has effectively never updated.
	ErrCorrupt = errors.New("version record corrupt")
)

// FileRepository persists the version record to a YAML file on disk.
// Writes go through a temporary file and rename so a crash mid-write cannot
// leave a half-written record behind.
type FileRepository struct {
	// path is the filesystem location of the record file.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read version record: %w", err)
	}

	var rec Record
	if err = yaml.Unmarshal(contents, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	if rec.AppliedAt.IsZero() {
		return nil, fmt.Errorf("%w: missing applied_at", ErrCorrupt)
	}

	return &rec, nil
}

// Save writes the record to disk atomically.
func (r *FileRepository) Save(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode version record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".record-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}

	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write version record: %w", err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close version record: %w", err)
	}

	if err = os.Chmod(tmpName, config.DefaultFilePermissions); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("chmod version record: %w", err)
	}

	if err = os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("commit version record: %w", err)
	}

	return nil
}
