// Package record implements persistence for the local version record.
//
// The FileRepository stores and loads the record as YAML on disk and exposes
// a Repository interface that the agent service depends on. The record is
// the single piece of trusted mutable state on a device.
package record
