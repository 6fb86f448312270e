// Package contracts carries the shared surface of the application: the
// domain types under domain/ and the build version.
package contracts

import (
	"fmt"
	"runtime"
)

// Version is the application version.
const Version = "0.3.0"

// Set at build time via ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is the version block reported by the health endpoint.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns the full version block.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String returns the one-line form used in startup logs.
func (v VersionInfo) String() string {
	return fmt.Sprintf("fidcetl v%s (commit %s, built %s)", v.Version, v.GitCommit, v.BuildTime)
}
