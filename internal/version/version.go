package version

import (
	"runtime/debug"
)

// Set with -ldflags "-X blockwatch/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Commit returns GitCommit, or the VCS revision the go tool embedded when it
// was not set at link time.
func Commit() string {
	if GitCommit != "" {
		return GitCommit
	}
	return buildSetting("vcs.revision", "unknown")
}

// Built returns BuildTime, or the VCS commit time embedded by the go tool.
func Built() string {
	if BuildTime != "" {
		return BuildTime
	}
	return buildSetting("vcs.time", "unknown")
}

func String() string {
	commit := Commit()
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return Version + " (commit: " + commit + ", built: " + Built() + ")"
}

func buildSetting(key, fallback string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fallback
	}
	for _, s := range info.Settings {
		if s.Key == key && s.Value != "" {
			return s.Value
		}
	}
	return fallback
}
