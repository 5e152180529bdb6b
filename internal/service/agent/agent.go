package agent

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/otakit/courier/internal/config"
	"github.com/otakit/courier/internal/domain/release"
	"github.com/otakit/courier/internal/logger"
	"github.com/otakit/courier/internal/repository/record"
	"github.com/otakit/courier/internal/runtime"
	"github.com/otakit/courier/internal/signing"
	"github.com/otakit/courier/internal/store"
)

// errImageUnavailable is returned when self-healing finds neither a unit nor
// its image on the device.
var errImageUnavailable = errors.New("applied image no longer present on device")

// Agent runs the device side of the update protocol: detect, verify, apply,
// commit. One Agent serves one device; invocations must be serialized by the
// caller (see the run guard in this package).
type Agent struct {
	// unitName is the logical name of the deployment unit.
	unitName string
	// timeout bounds every remote store operation.
	timeout time.Duration
	// store is the remote artifact store for the project.
	store store.Store
	// records persists the local version record.
	records record.Repository
	// runtime manages the deployment unit.
	runtime runtime.Runtime
	// key is the public half of the project's signing keypair.
	key *rsa.PublicKey
}

// New creates an agent from its collaborators.
func New(cfg *config.Config, st store.Store, records record.Repository, rt runtime.Runtime, key *rsa.PublicKey) *Agent {
	return &Agent{
		unitName: cfg.UnitName,
		timeout:  cfg.Timeout,
		store:    st,
		records:  records,
		runtime:  rt,
		key:      key,
	}
}

// ApplyUpdate executes one pass of the update cycle.
//
// The pass mutates device state in exactly one place: the version record is
// overwritten only after a verified artifact has reported a successful start.
// Every other path leaves the previous unit and record untouched, so a crash
// at any point is recovered by simply invoking ApplyUpdate again.
func (a *Agent) ApplyUpdate(ctx context.Context) (*Result, error) {
	// Tag the pass so interleaved daemon logs correlate.
	ctx = logger.WithKV(ctx, "cycle_id", uuid.NewString())

	current, currentRef, err := a.loadRecord(ctx)
	if err != nil {
		return nil, err
	}

	manifestBytes, err := a.fetchObject(ctx, release.ManifestObject)
	if err != nil {
		return a.failed(ctx, fetchReason(err), err)
	}

	remote, err := release.ParseManifest(manifestBytes)
	if err != nil {
		// A garbled manifest may be a publish caught mid-flight; retrying
		// next cycle is the safe interpretation.
		return a.failed(ctx, ReasonFetchError, fmt.Errorf("%w: %w", ErrTransientFetch, err))
	}

	if remote.LastBuild.Equal(current) {
		return a.selfHeal(ctx, current, currentRef)
	}

	logger.InfoKV(ctx, "New release detected",
		"local", current.Format(time.RFC3339),
		"remote", remote.LastBuild.Format(time.RFC3339))

	bundle, err := a.fetchObject(ctx, release.BundleObject)
	if err != nil {
		return a.failed(ctx, fetchReason(err), err)
	}

	bundleSig, err := a.fetchObject(ctx, release.BundleSigObject)
	if err != nil {
		return a.failed(ctx, fetchReason(err), err)
	}

	manifestSig, err := a.fetchObject(ctx, release.ManifestSigObject)
	if err != nil {
		return a.failed(ctx, fetchReason(err), err)
	}

	// Verify before touching anything. Manifest and bundle are checked
	// independently; either failing discards the whole download.
	if err = signing.Verify(a.key, manifestBytes, manifestSig); err != nil {
		return a.rejected(ctx, ReasonManifestSignature,
			fmt.Errorf("%w: manifest: %w", ErrTrust, err))
	}

	if err = signing.Verify(a.key, bundle, bundleSig); err != nil {
		return a.rejected(ctx, ReasonBundleSignature,
			fmt.Errorf("%w: bundle: %w", ErrTrust, err))
	}

	logger.Info(ctx, "Signatures verified, applying release")

	// Apply. Removing a unit that does not exist is not an error, which is
	// what makes a crashed pass safe to repeat.
	if err = a.runtime.Remove(ctx, a.unitName); err != nil {
		return a.failed(ctx, ReasonApplyError,
			fmt.Errorf("%w: remove previous unit: %w", ErrApply, err))
	}

	ref, err := a.runtime.ImportBundle(ctx, bytes.NewReader(bundle))
	if err != nil {
		// The previous unit is already gone at this point; bring it back
		// from its still-present image so the device keeps running.
		a.restorePrevious(ctx, currentRef)

		return a.failed(ctx, ReasonApplyError,
			fmt.Errorf("%w: import bundle: %w", ErrApply, err))
	}

	if err = a.runtime.Start(ctx, a.unitName, ref); err != nil {
		// The previous workload must remain or be restarted on an apply
		// failure, so bring it back from its already-trusted image.
		a.restorePrevious(ctx, currentRef)

		return a.failed(ctx, ReasonApplyError,
			fmt.Errorf("%w: start unit: %w", ErrApply, err))
	}

	// Commit point: the single write that advances trusted state. If the
	// process dies before this line, the stale record makes the next pass
	// re-detect divergence and repeat the apply, which is idempotent.
	if err = a.records.Save(ctx, &record.Record{AppliedAt: remote.LastBuild, ImageRef: ref}); err != nil {
		return a.failed(ctx, ReasonApplyError,
			fmt.Errorf("%w: commit version record: %w", ErrApply, err))
	}

	logger.InfoKV(ctx, "Release applied",
		"instant", remote.LastBuild.Format(time.RFC3339),
		"image", ref)

	return &Result{Outcome: OutcomeUpdated, Applied: remote.LastBuild}, nil
}

// selfHeal handles the no-op path: the published release is already applied,
// so the only work left is making sure the unit is actually up. Artifacts
// were verified when the record was committed, so no network fetch and no
// re-verification happen here.
func (a *Agent) selfHeal(ctx context.Context, current time.Time, currentRef string) (*Result, error) {
	status, err := a.runtime.Status(ctx, a.unitName)
	if err != nil {
		return a.failed(ctx, ReasonSelfHealFailed,
			fmt.Errorf("%w: inspect unit: %w", ErrApply, err))
	}

	switch status {
	case runtime.StatusRunning:
		logger.Debug(ctx, "Release current, deployment unit running")

	case runtime.StatusStopped:
		logger.WarnKV(ctx, "Deployment unit stopped, resuming", "unit", a.unitName)

		if err = a.runtime.Resume(ctx, a.unitName); err != nil {
			return a.failed(ctx, ReasonSelfHealFailed,
				fmt.Errorf("%w: resume unit: %w", ErrApply, err))
		}

	case runtime.StatusAbsent:
		logger.WarnKV(ctx, "Deployment unit missing, re-creating from applied image",
			"unit", a.unitName, "image", currentRef)

		if err = a.recreateUnit(ctx, currentRef); err != nil {
			return a.failed(ctx, ReasonSelfHealFailed, err)
		}
	}

	return &Result{Outcome: OutcomeNoOp, Applied: current}, nil
}

// restorePrevious is the best-effort rollback after a failed start: remove
// whatever half-started unit may exist and re-create the previous one from
// the image recorded at the last commit. A device that never applied a
// release has nothing to restore.
func (a *Agent) restorePrevious(ctx context.Context, imageRef string) {
	if imageRef == "" {
		return
	}

	if err := a.runtime.Remove(ctx, a.unitName); err != nil {
		logger.WarnKV(ctx, "Failed to clear unit before rollback", "error", err)
		return
	}

	if err := a.recreateUnit(ctx, imageRef); err != nil {
		logger.WarnKV(ctx, "Failed to restore previous unit", "image", imageRef, "error", err)
		return
	}

	logger.InfoKV(ctx, "Restored previous deployment unit", "image", imageRef)
}

// recreateUnit starts the unit from the image recorded at commit time.
// A missing image is surfaced rather than silently re-downloaded: the no-op
// path never fetches artifacts.
func (a *Agent) recreateUnit(ctx context.Context, imageRef string) error {
	if imageRef == "" {
		return fmt.Errorf("%w: %w", ErrApply, errImageUnavailable)
	}

	ok, err := a.runtime.HasImage(ctx, imageRef)
	if err != nil {
		return fmt.Errorf("%w: inspect image: %w", ErrApply, err)
	}

	if !ok {
		return fmt.Errorf("%w: %s: %w", ErrApply, imageRef, errImageUnavailable)
	}

	if err = a.runtime.Start(ctx, a.unitName, imageRef); err != nil {
		return fmt.Errorf("%w: re-create unit: %w", ErrApply, err)
	}

	return nil
}

// loadRecord reads the local version record. A missing or corrupt record
// means the device has effectively never updated: the epoch instant forces a
// full apply. An I/O error is fatal, since it implies a broken device
// filesystem rather than a missing record.
func (a *Agent) loadRecord(ctx context.Context) (time.Time, string, error) {
	rec, err := a.records.Load(ctx)

	switch {
	case err == nil:
		return rec.AppliedAt, rec.ImageRef, nil

	case errors.Is(err, record.ErrNotFound):
		logger.Info(ctx, "No local version record, assuming never updated")
		return release.Epoch(), "", nil

	case errors.Is(err, record.ErrCorrupt):
		logger.WarnKV(ctx, "Local version record corrupt, assuming never updated", "error", err)
		return release.Epoch(), "", nil

	default:
		return time.Time{}, "", fmt.Errorf("%w: %w", ErrConfig, err)
	}
}

// fetchObject retrieves one store object under the configured timeout.
func (a *Agent) fetchObject(ctx context.Context, object string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	data, err := a.store.Fetch(fetchCtx, object)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrTransientFetch, object, err)
	}

	return data, nil
}

// fetchReason distinguishes a timed-out fetch from other fetch failures.
func fetchReason(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	return ReasonFetchError
}

// failed finishes the pass with a retryable failure. No state was changed.
func (a *Agent) failed(ctx context.Context, reason Reason, err error) (*Result, error) {
	logger.ErrorKV(ctx, "Update cycle failed", "reason", reason, "error", err)

	return &Result{Outcome: OutcomeFailed, Reason: reason}, err
}

// rejected finishes the pass by discarding an unverifiable release. The
// running unit and the version record are untouched; the event is surfaced
// loudly because a bad signature on the store is a security signal, not an
// operational hiccup.
func (a *Agent) rejected(ctx context.Context, reason Reason, err error) (*Result, error) {
	logger.ErrorKV(ctx, "Release rejected, signature verification failed",
		"reason", reason, "security_event", true, "error", err)

	return &Result{Outcome: OutcomeRejected, Reason: reason}, err
}
