// Package version carries build-time metadata for the daqstream binary.
package version

// Populated via -ldflags at release build time.
var (
	// Version is the semantic version of the binary.
	Version = "dev"
	// Commit is the Git commit the binary was built from.
	Commit = "none"
	// Date is the build timestamp.
	Date = "unknown"
)
