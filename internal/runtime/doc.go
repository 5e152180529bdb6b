// Package runtime abstracts the deployment unit lifecycle on a device.
//
// The Containerd implementation imports bundles into containerd's image
// store and runs the unit as a container labeled for the restart monitor.
// The Fake implementation backs the test suite.
package runtime
