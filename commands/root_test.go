package commands

import (
	"testing"

	"github.com/hgdb-sim/hgdb/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHostname(t *testing.T) {
	assert.Equal(t, "localhost:8888", expandHostname(":8888", 8888))
	assert.Equal(t, "sim.local:9000", expandHostname("sim.local:9000", 8888))
	assert.Equal(t, "sim.local:8888", expandHostname("sim.local", 8888))
}

func TestParseMapping(t *testing.T) {
	pm, mapping, err := parseMapping("/remote:/local", nil)
	require.NoError(t, err)
	assert.Equal(t, session.PathMap{Remote: "/remote", Local: "/local"}, pm)
	assert.Equal(t, map[string]string{"/remote": "/local"}, mapping)

	_, _, err = parseMapping("nonsense", nil)
	require.Error(t, err)

	pm, mapping, err = parseMapping("", map[string]string{"/r": "/l"})
	require.NoError(t, err)
	assert.Equal(t, "/l", pm.Local)
	assert.Equal(t, map[string]string{"/r": "/l"}, mapping)

	pm, mapping, err = parseMapping("", nil)
	require.NoError(t, err)
	assert.Equal(t, session.PathMap{}, pm)
	assert.Nil(t, mapping)
}
