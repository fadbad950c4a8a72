package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString_UsesLinkTimeValues(t *testing.T) {
	prevVersion, prevCommit, prevBuilt := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = prevVersion, prevCommit, prevBuilt })

	Version = "1.4.0"
	GitCommit = "0123456789abcdef0123"
	BuildTime = "2026-01-02T03:04:05Z"

	assert.Equal(t, "0123456789abcdef0123", Commit())
	assert.Equal(t, "1.4.0 (commit: 0123456789ab, built: 2026-01-02T03:04:05Z)", String())
}

func TestCommit_FallsBack(t *testing.T) {
	prev := GitCommit
	t.Cleanup(func() { GitCommit = prev })

	GitCommit = ""
	assert.NotEmpty(t, Commit())
}
