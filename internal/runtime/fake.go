package runtime

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrUnitExists is returned by the fake when Start targets an existing unit.
var ErrUnitExists = errors.New("unit already exists")

// errUnitAbsent is returned by the fake when Resume targets a missing unit.
var errUnitAbsent = errors.New("unit does not exist")

// FakeUnit is the fake's view of one deployment unit.
type FakeUnit struct {
	// ImageRef is the image the unit was created from.
	ImageRef string
	// Running reports whether the unit's task is up.
	Running bool
}

// Fake is an in-memory Runtime for tests. Error injection fields make the
// failure paths of the update cycle reachable without a containerd daemon.
type Fake struct {
	mu     sync.Mutex
	images map[string]struct{}
	units  map[string]*FakeUnit

	// ImportErr, StartErr, ResumeErr and RemoveErr, when set, are returned
	// by the corresponding method instead of mutating state.
	ImportErr error
	StartErr  error
	ResumeErr error
	RemoveErr error

	// StartCalls counts successful and failed Start attempts.
	StartCalls int
}

// NewFake creates an empty fake runtime.
func NewFake() *Fake {
	return &Fake{
		images: make(map[string]struct{}),
		units:  make(map[string]*FakeUnit),
	}
}

// ImportBundle registers an image keyed by the bundle's content digest, so
// the same bundle always maps to the same reference.
func (f *Fake) ImportBundle(_ context.Context, bundle io.Reader) (string, error) {
	data, err := io.ReadAll(bundle)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ImportErr != nil {
		return "", f.ImportErr
	}

	sum := sha256.Sum256(data)
	ref := fmt.Sprintf("imported:%x", sum[:6])
	f.images[ref] = struct{}{}

	return ref, nil
}

// HasImage reports whether the reference was imported.
func (f *Fake) HasImage(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.images[ref]

	return ok, nil
}

// Start creates and runs a unit from an imported image.
func (f *Fake) Start(_ context.Context, unit, imageRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.StartCalls++

	if f.StartErr != nil {
		return f.StartErr
	}

	if _, ok := f.units[unit]; ok {
		return fmt.Errorf("%s: %w", unit, ErrUnitExists)
	}

	if _, ok := f.images[imageRef]; !ok {
		return fmt.Errorf("image %s not imported", imageRef)
	}

	f.units[unit] = &FakeUnit{ImageRef: imageRef, Running: true}

	return nil
}

// Resume marks a stopped unit as running again.
func (f *Fake) Resume(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ResumeErr != nil {
		return f.ResumeErr
	}

	u, ok := f.units[unit]
	if !ok {
		return fmt.Errorf("%s: %w", unit, errUnitAbsent)
	}

	u.Running = true

	return nil
}

// Remove deletes the unit. Absence is tolerated, matching the real runtime.
func (f *Fake) Remove(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RemoveErr != nil {
		return f.RemoveErr
	}

	delete(f.units, unit)

	return nil
}

// Status reports the unit's state.
func (f *Fake) Status(_ context.Context, unit string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.units[unit]
	if !ok {
		return StatusAbsent, nil
	}

	if u.Running {
		return StatusRunning, nil
	}

	return StatusStopped, nil
}

// Unit returns a copy of the unit's state, or nil when absent.
// Test helper only.
func (f *Fake) Unit(unit string) *FakeUnit {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.units[unit]
	if !ok {
		return nil
	}

	copied := *u

	return &copied
}

// StopUnit marks the unit's task as exited without removing it, simulating a
// crashed workload. Test helper only.
func (f *Fake) StopUnit(unit string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u, ok := f.units[unit]; ok {
		u.Running = false
	}
}

// ForgetImage drops an image from the store, simulating image garbage
// collection on the device. Test helper only.
func (f *Fake) ForgetImage(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.images, ref)
}

// SetUnit installs a unit directly, bypassing Start. Tests use it to model
// states such as "new unit running but commit never happened". Test helper only.
func (f *Fake) SetUnit(unit string, u *FakeUnit) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u == nil {
		delete(f.units, unit)
		return
	}

	copied := *u
	f.units[unit] = &copied
}

// RegisterImage installs an image reference directly. Test helper only.
func (f *Fake) RegisterImage(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.images[ref] = struct{}{}
}
