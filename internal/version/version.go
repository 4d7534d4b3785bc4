// Package version holds build metadata injected at link time.
package version

var (
	// Version is the semantic version of the build, set via -ldflags.
	Version = "dev"
	// CommitSHA identifies the source revision of the build.
	CommitSHA = "unknown"
	// BuildDate records when the binary was produced.
	BuildDate = "unknown"
)
