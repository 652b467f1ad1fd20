package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reset(t *testing.T, v, c, d string) {
	t.Helper()

	oldV, oldC, oldD := Version, Commit, Date
	Version, Commit, Date = v, c, d

	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })
}

func TestApply_FillsFromBuildInfo(t *testing.T) {
	reset(t, "dev", unknown, unknown)

	apply(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})

	assert.Equal(t, "v1.2.3", Version)
	assert.Equal(t, "abc123", Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", Date)
	assert.Equal(t, "codemod v1.2.3 (commit: abc123, built: 2026-01-02T03:04:05Z)", String())
}

func TestApply_KeepsLinkerValues(t *testing.T) {
	reset(t, "v9.0.0", "fixed", "today")

	apply(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "other"}},
	})

	assert.Equal(t, "v9.0.0", Version)
	assert.Equal(t, "fixed", Commit)
	assert.Equal(t, "today", Date)
}

func TestApply_IgnoresDevelVersion(t *testing.T) {
	reset(t, "dev", unknown, unknown)

	apply(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	assert.Equal(t, "dev", Version)
	assert.Equal(t, unknown, Commit)
}
