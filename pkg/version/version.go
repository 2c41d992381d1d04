// Package version reports build information for the scorch binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Values injected at build time with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the build information. A binary installed with go install has
// no injected values, so its module version and VCS revision are used instead.
func Get() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if Version != "dev" {
		return info
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && GitCommit == "unknown":
			info.Commit = s.Value
		case s.Key == "vcs.time" && BuildTime == "unknown":
			info.BuildTime = s.Value
		}
	}
	return info
}

// String returns a one-line version banner.
func String() string {
	info := Get()
	return fmt.Sprintf("scorch %s (commit: %s, built: %s, %s %s)",
		info.Version, info.Commit, info.BuildTime, info.GoVersion, info.Platform)
}
