// Package version carries build metadata stamped at link time via
// -ldflags -X.
package version

import "fmt"

var (
	// Version is the release version, "dev" for unstamped builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the build metadata on one line.
func String() string {
	return fmt.Sprintf("sensor-replay %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
