// Package buildinfo carries version metadata stamped in at link time via
// -ldflags "-X github.com/readstash/readstash/internal/buildinfo.Version=...".
package buildinfo

import "fmt"

var (
	Version = "N/A"
	Commit  = "N/A"
	Date    = "N/A"
)

// String renders the build info on one line for the version command.
func String() string {
	return fmt.Sprintf("readstash %s (commit %s, built %s)", Version, Commit, Date)
}
