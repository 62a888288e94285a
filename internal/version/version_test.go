package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseBuildTime(t *testing.T) {
	want := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	assert.True(t, want.Equal(parseBuildTime("2025-03-04T05:06:07Z")))
	assert.True(t, want.Equal(parseBuildTime("2025-03-04T05:06:07")))
	assert.True(t, want.Equal(parseBuildTime("2025-03-04 05:06:07")))
	assert.True(t, parseBuildTime("unknown").IsZero())
	assert.True(t, parseBuildTime("yesterday").IsZero())
}

func TestGetUsesLinkerValues(t *testing.T) {
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime })

	Version = "v1.2.0"
	GitCommit = "0123456789abcdef"
	BuildTime = "2025-03-04T05:06:07Z"

	info := Get()
	assert.Equal(t, "v1.2.0", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, "v1.2.0 (0123456)", info.Short())
	assert.True(t, info.IsRelease())
	assert.Contains(t, info.String(), "Built: 2025-03-04T05:06:07Z")
	assert.NotEmpty(t, info.GoVersion)
}

func TestBuildInfoDev(t *testing.T) {
	info := &BuildInfo{Version: "dev-0123456", GitCommit: "0123456789", GoVersion: "go1.24", Platform: "linux/amd64"}

	assert.False(t, info.IsRelease())
	assert.Equal(t, "dev-0123456", info.Short())
	assert.NotContains(t, info.String(), "Built:")

	info.Dirty = true
	assert.Contains(t, info.String(), "Commit: 0123456789 (dirty)")
}
