package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the version line printed by "boxtrack version" and stored
// with every tracking run.
func String() string {
	return fmt.Sprintf("boxtrack %s (%s, built %s)", Version, GitSHA, BuildTime)
}
