// Package version exposes build metadata stamped in via ldflags, e.g.
// -ldflags "-X .../internal/version.Version=v1.2.0".
package version

//nolint:revive // Overwritten by the linker at build time.
var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the short git revision.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)
