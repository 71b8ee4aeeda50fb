// Package version holds build information for the fip binary.
package version

import (
	"fmt"
	"runtime"
)

// Overridable at build time:
// go build -ldflags "-X fip/internal/version.Version=0.3.0 -X fip/internal/version.Commit=$(git rev-parse HEAD)"
var (
	// Version is the semantic version of fip
	Version = "0.1.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns the version with a short commit suffix when one is known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Platform returns the Go runtime and target of this build.
func Platform() string {
	return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Full returns complete version information
func Full() string {
	return "fip version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate + "\n" +
		"Platform: " + Platform()
}
