package version

import "fmt"

// Build metadata, stamped through -ldflags by the release pipeline. The
// defaults below are what a plain `go build` produces.
var (
	// Version is the release tag of this binary.
	Version = "1.0.0"
	// Commit is the abbreviated git revision the binary was built from.
	Commit = "none"
	// BuildTime is when the binary was built, UTC.
	BuildTime = "unknown"
)

// Short returns just the release tag.
func Short() string {
	return Version
}

// Full renders the complete build description for the version subcommand.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}
