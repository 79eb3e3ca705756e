package presets

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocationPlugin(t *testing.T) {
	loc, err := ParseLocation(PluginLocationURI)
	require.NoError(t, err)
	assert.True(t, loc.IsPlugin)
	assert.Equal(t, PluginLocationURI, loc.String())
}

func TestParseLocationFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("path assertions are POSIX-shaped")
	}
	loc, err := ParseLocation("file:///usr/share/presets/foo.preset")
	require.NoError(t, err)
	assert.False(t, loc.IsPlugin)
	assert.Equal(t, "/usr/share/presets/foo.preset", loc.Path)
	assert.Equal(t, "file:///usr/share/presets/foo.preset", loc.String())
}

func TestParseLocationRejectsUnknownScheme(t *testing.T) {
	_, err := ParseLocation("http://example.com/preset")
	assert.Error(t, err)
}

func TestParseLocationRejectsRelativePath(t *testing.T) {
	_, err := ParseLocation("file:relative/path")
	assert.Error(t, err)
}

func TestParseLocationNeverProducesFilleTypo(t *testing.T) {
	loc, err := ParseLocation("file:///a/b.preset")
	require.NoError(t, err)
	assert.NotContains(t, loc.String(), "fille://")
}
