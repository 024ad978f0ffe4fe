package version

import "fmt"

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/harvestcycle/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, also set via ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	return fmt.Sprintf("harvestcycle %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
