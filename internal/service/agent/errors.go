package agent

import "errors"

// Error classes of the update cycle. Only ErrConfig is fatal; everything
// else is safe to retry by simply invoking ApplyUpdate again.
var (
	// ErrTransientFetch marks network or store failures. Retry next cycle,
	// no state change.
	ErrTransientFetch = errors.New("transient fetch error")
	// ErrTrust marks a signature verification failure. The release is
	// rejected and never retried against the same content; no state change.
	ErrTrust = errors.New("trust error")
	// ErrApply marks a failure to load or start the artifact. No state
	// change; the previous workload remains or is restarted.
	ErrApply = errors.New("apply error")
	// ErrConfig marks missing trust material or unreadable local state.
	// Fatal: the agent halts and an operator must intervene.
	ErrConfig = errors.New("configuration error")
)

// Reason narrows an outcome for logs and operators.
type Reason string

const (
	// ReasonFetchError is a failed remote fetch.
	ReasonFetchError Reason = "fetch_error"
	// ReasonTimeout is a remote fetch that exceeded the configured bound.
	ReasonTimeout Reason = "timeout"
	// ReasonManifestSignature is a manifest that failed verification.
	ReasonManifestSignature Reason = "manifest_signature_invalid"
	// ReasonBundleSignature is a bundle that failed verification.
	ReasonBundleSignature Reason = "bundle_signature_invalid"
	// ReasonApplyError is an artifact that failed to load or start.
	ReasonApplyError Reason = "apply_error"
	// ReasonSelfHealFailed is a matching release whose unit could not be
	// brought back up from already-applied artifacts.
	ReasonSelfHealFailed Reason = "self_heal_failed"
)
