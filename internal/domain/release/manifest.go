package release

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Store object names. A project prefix in the store contains exactly these
// four objects; publishing overwrites them in place.
const (
	// ManifestObject is the version manifest.
	ManifestObject = "version.yaml"
	// ManifestSigObject is the detached signature over the manifest bytes.
	ManifestSigObject = "version.yaml.sig"
	// BundleObject is the artifact bundle (an exported container image tar).
	BundleObject = "bundle.tar"
	// BundleSigObject is the detached signature over the bundle bytes.
	BundleSigObject = "bundle.tar.sig"
)

// Manifest identifies a release by its build instant. Two manifests with the
// same instant describe the same release regardless of byte equality.
type Manifest struct {
	// LastBuild is the UTC build instant at second precision.
	LastBuild time.Time
}

// manifestYAML is the lenient wire form: unknown fields are ignored and the
// timestamp is carried as a string so we control its format.
type manifestYAML struct {
	LastBuild string `yaml:"last_build"`
}

// NewManifest builds a manifest for the given instant, normalized to UTC at
// second precision.
func NewManifest(at time.Time) *Manifest {
	return &Manifest{LastBuild: at.UTC().Truncate(time.Second)}
}

// Epoch is the instant an agent assumes when it has no local version record:
// "never updated", forcing a full apply on the next cycle.
func Epoch() time.Time {
	return time.Unix(0, 0).UTC()
}

// Encode renders the manifest deterministically: one field, fixed RFC3339
// format. Re-encoding the same instant always yields identical bytes, so a
// signature stays verifiable across round trips.
func (m *Manifest) Encode() []byte {
	return []byte("last_build: \"" + m.LastBuild.UTC().Format(time.RFC3339) + "\"\n")
}

// ParseManifest decodes manifest bytes. Extra fields are ignored; only
// last_build is required and it must be a valid RFC3339 instant.
func ParseManifest(data []byte) (*Manifest, error) {
	var wire manifestYAML
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	instant, err := time.Parse(time.RFC3339, wire.LastBuild)
	if err != nil {
		return nil, fmt.Errorf("parse last_build: %w", err)
	}

	return NewManifest(instant), nil
}

// Equal reports whether two manifests identify the same release.
func (m *Manifest) Equal(other *Manifest) bool {
	return other != nil && m.LastBuild.Equal(other.LastBuild)
}
