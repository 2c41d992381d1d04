package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildValues(t *testing.T, version, commit, built string) {
	t.Helper()
	origVersion, origCommit, origBuildTime := Version, GitCommit, BuildTime
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = origVersion, origCommit, origBuildTime
	})
	Version, GitCommit, BuildTime = version, commit, built
}

func TestGet_Injected(t *testing.T) {
	withBuildValues(t, "1.2.3", "abc123def", "2026-01-15T10:30:00Z")

	info := Get()
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123def", info.Commit)
	assert.Equal(t, "2026-01-15T10:30:00Z", info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestGet_DevelopmentBuild(t *testing.T) {
	withBuildValues(t, "dev", "unknown", "unknown")

	info := Get()
	// Test binaries carry no module version, so the defaults survive.
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestString(t *testing.T) {
	withBuildValues(t, "1.2.3", "abc123def", "2026-01-15T10:30:00Z")

	s := String()
	assert.Contains(t, s, "scorch 1.2.3")
	assert.Contains(t, s, "commit: abc123def")
	assert.Contains(t, s, "built: 2026-01-15T10:30:00Z")
	assert.Contains(t, s, runtime.Version())
}
