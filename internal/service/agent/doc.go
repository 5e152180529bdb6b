// Package agent implements the device side of the update protocol.
//
// ApplyUpdate is a single-pass state machine: fetch the remote manifest,
// compare instants, and on divergence download, verify and apply the new
// artifact, committing the version record only after the unit has started.
// Equal instants reduce to a cheap self-heal path that restarts the unit
// from already-trusted artifacts without touching the network.
//
// Invocations on one device are serialized by a marker-file run guard; the
// daemon entry point adds a ticker around the same pass.
package agent
