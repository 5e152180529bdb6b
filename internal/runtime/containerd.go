package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/oci"
	"github.com/containerd/containerd/runtime/restart"

	"github.com/otakit/courier/internal/logger"
)

// errEmptyBundle is returned when an imported bundle contains no images.
var errEmptyBundle = errors.New("bundle contains no images")

// Containerd runs deployment units as containerd containers.
// Units are labeled for containerd's restart monitor, so a crashed workload
// or a rebooted host brings the unit back without agent involvement.
type Containerd struct {
	client *containerd.Client
	logDir string
}

// NewContainerd connects to containerd over the given socket and pins all
// operations to the given namespace. Unit stdio is captured to per-unit log
// files under logDir.
func NewContainerd(socket, namespace, logDir string) (*Containerd, error) {
	client, err := containerd.New(socket, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("connect to containerd at %s: %w", socket, err)
	}

	return &Containerd{
		client: client,
		logDir: logDir,
	}, nil
}

// Close releases the containerd client connection.
func (r *Containerd) Close() error {
	return r.client.Close()
}

// ImportBundle imports an exported image tar into containerd's image store,
// unpacks it for the default snapshotter, and returns the reference of the
// first image in the bundle.
func (r *Containerd) ImportBundle(ctx context.Context, bundle io.Reader) (string, error) {
	imported, err := r.client.Import(ctx, bundle)
	if err != nil {
		return "", fmt.Errorf("import bundle: %w", err)
	}

	if len(imported) == 0 {
		return "", errEmptyBundle
	}

	img := containerd.NewImage(r.client, imported[0])
	if err = img.Unpack(ctx, ""); err != nil {
		return "", fmt.Errorf("unpack image %s: %w", img.Name(), err)
	}

	logger.InfoKV(ctx, "Imported bundle into containerd", "image", img.Name())

	return imported[0].Name, nil
}

// HasImage reports whether the image reference exists in the local store.
func (r *Containerd) HasImage(ctx context.Context, ref string) (bool, error) {
	_, err := r.client.GetImage(ctx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("get image %s: %w", ref, err)
	}

	return true, nil
}

// Start creates the unit container from the image and starts its task.
// The restart monitor labels keep it running across crashes and reboots.
func (r *Containerd) Start(ctx context.Context, unit, imageRef string) error {
	img, err := r.client.GetImage(ctx, imageRef)
	if err != nil {
		return fmt.Errorf("get image %s: %w", imageRef, err)
	}

	logURI, err := cio.LogURIGenerator("file", r.unitLogPath(unit), nil)
	if err != nil {
		return fmt.Errorf("build log URI: %w", err)
	}

	container, err := r.client.NewContainer(
		ctx,
		unit,
		containerd.WithImage(img),
		containerd.WithNewSnapshot(unit+"-snapshot", img),
		containerd.WithNewSpec(oci.WithImageConfig(img)),
		restart.WithStatus(containerd.Running),
		restart.WithLogURI(logURI),
	)
	if err != nil {
		return fmt.Errorf("create container %s: %w", unit, err)
	}

	if err = r.startTask(ctx, container); err != nil {
		// Best-effort rollback so a retry does not trip over a task-less container.
		if deleteErr := container.Delete(ctx, containerd.WithSnapshotCleanup); deleteErr != nil {
			logger.WarnKV(ctx, "Failed to clean up container after start failure",
				"unit", unit, "error", deleteErr)
		}

		return err
	}

	logger.InfoKV(ctx, "Started deployment unit", "unit", unit, "image", imageRef)

	return nil
}

// Resume restarts the task of an existing unit. A running unit is a no-op;
// a finished task is deleted and recreated from the unit's snapshot.
func (r *Containerd) Resume(ctx context.Context, unit string) error {
	container, err := r.client.LoadContainer(ctx, unit)
	if err != nil {
		return fmt.Errorf("load container %s: %w", unit, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return r.startTask(ctx, container)
		}

		return fmt.Errorf("load task for %s: %w", unit, err)
	}

	status, err := task.Status(ctx)
	if err != nil {
		return fmt.Errorf("task status for %s: %w", unit, err)
	}

	if status.Status == containerd.Running {
		return nil
	}

	if _, err = task.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("delete finished task for %s: %w", unit, err)
	}

	return r.startTask(ctx, container)
}

// Remove stops and deletes the unit, its task and its snapshot.
// A unit that does not exist is not an error, so a re-applied update after a
// crash does not fail on "already absent".
func (r *Containerd) Remove(ctx context.Context, unit string) error {
	container, err := r.client.LoadContainer(ctx, unit)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("load container %s: %w", unit, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("load task for %s: %w", unit, err)
	}

	if task != nil {
		if _, err = task.Delete(ctx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("kill task for %s: %w", unit, err)
		}
	}

	if err = container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("delete container %s: %w", unit, err)
	}

	logger.InfoKV(ctx, "Removed deployment unit", "unit", unit)

	return nil
}

// Status reports whether the unit exists and whether its task is running.
func (r *Containerd) Status(ctx context.Context, unit string) (Status, error) {
	container, err := r.client.LoadContainer(ctx, unit)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return StatusAbsent, nil
		}

		return StatusAbsent, fmt.Errorf("load container %s: %w", unit, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return StatusStopped, nil
		}

		return StatusStopped, fmt.Errorf("load task for %s: %w", unit, err)
	}

	status, err := task.Status(ctx)
	if err != nil {
		return StatusStopped, fmt.Errorf("task status for %s: %w", unit, err)
	}

	if status.Status == containerd.Running {
		return StatusRunning, nil
	}

	return StatusStopped, nil
}

// startTask creates and starts a task for the container, capturing stdio to
// the unit's log file.
func (r *Containerd) startTask(ctx context.Context, container containerd.Container) error {
	task, err := container.NewTask(ctx, cio.LogFile(r.unitLogPath(container.ID())))
	if err != nil {
		return fmt.Errorf("create task for %s: %w", container.ID(), err)
	}

	// Call Wait before Start so the task's status notifications are not missed.
	if _, err = task.Wait(ctx); err != nil {
		_, _ = task.Delete(ctx)

		return fmt.Errorf("wait on task for %s: %w", container.ID(), err)
	}

	if err = task.Start(ctx); err != nil {
		_, _ = task.Delete(ctx)

		return fmt.Errorf("start task for %s: %w", container.ID(), err)
	}

	return nil
}

// unitLogPath composes the per-unit log file path.
func (r *Containerd) unitLogPath(unit string) string {
	return filepath.Join(r.logDir, unit+".log")
}
