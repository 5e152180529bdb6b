package agent

import "time"

// Outcome is the terminal state of one ApplyUpdate pass.
type Outcome string

const (
	// OutcomeNoOp means the device already runs the published release.
	// Self-healing may still have restarted the unit.
	OutcomeNoOp Outcome = "noop"
	// OutcomeUpdated means a new release was verified, applied and committed.
	OutcomeUpdated Outcome = "updated"
	// OutcomeRejected means the release failed signature verification and
	// was discarded without touching device state.
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed means a retryable failure stopped the pass before any
	// state change.
	OutcomeFailed Outcome = "failed"
)

// Result describes what one ApplyUpdate pass did.
type Result struct {
	// Outcome is the terminal state of the pass.
	Outcome Outcome
	// Reason narrows rejected and failed outcomes.
	Reason Reason
	// Applied is the manifest instant the device trusts after the pass:
	// the new instant on update, the confirmed one on no-op.
	Applied time.Time
}
