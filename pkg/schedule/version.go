package schedule

import "runtime"

// Version is the release of the gokanplan scheduler.
const Version = "0.1.0"

// VersionInfo provides detailed version information.
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

// GetVersionInfo returns version information; commit and date are filled
// in by the binary from its link-time flags.
func GetVersionInfo(commit, date string) VersionInfo {
	return VersionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		GitCommit: commit,
		BuildDate: date,
	}
}
