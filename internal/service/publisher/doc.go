// Package publisher implements the publish side of the update protocol:
// manifest creation, detached signing of manifest and bundle, and the
// ordered upload of the four release objects to the artifact store.
package publisher
