// Package store abstracts the remote artifact store that connects the
// publisher to its agents. The publisher writes the four release objects
// there; every agent polls them. No other channel exists between the two.
//
// Backends are created from a location URI (s3:// or file://) plus a project
// path, so both binaries share one configuration surface.
package store
