package runtime

import (
	"context"
	"io"
)

// Status describes the observed state of a deployment unit on a device.
type Status string

const (
	// StatusRunning means the unit exists and its task is running.
	StatusRunning Status = "running"
	// StatusStopped means the unit exists but is not running.
	StatusStopped Status = "stopped"
	// StatusAbsent means no unit with the logical name exists.
	StatusAbsent Status = "absent"
)

// Runtime manages the full lifecycle of the deployment unit: at most one
// instance with a given logical name exists on a device at a time, and the
// agent owns it end to end.
type Runtime interface {
	// ImportBundle loads an artifact bundle into the runtime's image store
	// and returns the image reference it was registered under.
	ImportBundle(ctx context.Context, bundle io.Reader) (string, error)
	// HasImage reports whether an image reference is present locally.
	HasImage(ctx context.Context, ref string) (bool, error)
	// Start creates the unit from an image and runs it, configured to
	// restart automatically on crash or host reboot. The unit must not
	// already exist.
	Start(ctx context.Context, unit, imageRef string) error
	// Resume brings an existing but stopped unit back up.
	// A unit that is already running is left untouched.
	Resume(ctx context.Context, unit string) error
	// Remove stops and deletes the unit. Absence is not an error.
	Remove(ctx context.Context, unit string) error
	// Status reports the unit's current state.
	Status(ctx context.Context, unit string) (Status, error)
}
