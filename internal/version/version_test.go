package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent_Defaults(t *testing.T) {
	b := Current()

	assert.Equal(t, Service, b.Service)
	assert.Equal(t, "dev", b.Version)
	assert.True(t, b.Dev())
	assert.Equal(t, "order-service dev (commit unknown, built unknown)", b.String())
}

func TestCurrent_LinkerValues(t *testing.T) {
	prevVersion, prevCommit, prevDate := version, commit, date
	t.Cleanup(func() { version, commit, date = prevVersion, prevCommit, prevDate })

	version, commit, date = "v1.4.0", "abc1234", "2024-03-01"
	b := Current()

	assert.False(t, b.Dev())
	assert.Equal(t, "order-service v1.4.0 (commit abc1234, built 2024-03-01)", b.String())
	assert.Equal(t, "v1.4.0", b.Fields()["version"])
	assert.Equal(t, "abc1234", b.Fields()["commit"])
	assert.Equal(t, "2024-03-01", b.Fields()["build_date"])
	assert.Equal(t, Service, b.Fields()["service"])
}
