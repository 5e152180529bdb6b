// Package release defines the release identity model: the version manifest,
// the fixed store object names, and the epoch instant used by devices that
// have never applied an update.
package release
