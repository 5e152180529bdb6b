package store

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a requested object does not exist in the
// store. Agents treat it like any other fetch failure: retry next cycle.
var ErrObjectNotFound = errors.New("object not found")

// Store is a remote artifact store holding the release objects for one
// project. Objects are addressed by bare names; the backend prepends the
// project path. Writes overwrite in place: the store keeps no history.
type Store interface {
	// Fetch retrieves an object by name.
	// Returns ErrObjectNotFound when the object does not exist.
	Fetch(ctx context.Context, object string) ([]byte, error)
	// Store writes an object, replacing any previous content under the name.
	// A concurrent Fetch must observe either the full old or the full new
	// bytes of that object, never a mix.
	Store(ctx context.Context, object string, data []byte) error
	// Name returns a short identifier for logging.
	Name() string
}
