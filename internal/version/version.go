// Package version provides build-time version information for the application.
package version

// Set at build time via -ldflags.
var (
	// Version is the application version, usually a git tag
	Version = "dev"
	// Commit is the git commit hash
	Commit = "dev"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
