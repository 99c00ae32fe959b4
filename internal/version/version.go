// Package version exposes build information for the quiver engine.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const unknownValue = "unknown"

// Build-time variables set by ldflags.
var (
	Version   = "dev"
	GitCommit = unknownValue
	BuildDate = unknownValue
	GoVersion = runtime.Version()
)

// BuildInfo is a snapshot of version and build metadata.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Dirty     bool   `json:"dirty"`
}

// Info assembles build information from ldflags and the embedded module
// build info.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
		Dirty:     strings.Contains(GitCommit, "-dirty"),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == unknownValue {
					info.GitCommit = setting.Value
				}
			case "vcs.time":
				if info.BuildDate == unknownValue {
					info.BuildDate = setting.Value
				}
			case "vcs.modified":
				info.Dirty = info.Dirty || setting.Value == "true"
			}
		}
	}
	return info
}

// String renders build info as a short human-readable block.
func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "quiver %s", b.Version)
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  commit:  %s\n", shortCommit(b.GitCommit))
	fmt.Fprintf(&sb, "  built:   %s\n", b.BuildDate)
	fmt.Fprintf(&sb, "  go:      %s\n", b.GoVersion)
	return sb.String()
}

func shortCommit(commit string) string {
	commit = strings.TrimSuffix(commit, "-dirty")
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
