// Package config defines the settings used by the courier binaries and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type holds the store location, trust material paths and the
// device-side deployment parameters. Validation is role-specific: the
// publisher needs the private key, the agent needs the public key and the
// containerd connection details.
package config
