package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequiresLibraryPath(t *testing.T) {
	assert.Error(t, Settings{}.Validate())
	assert.NoError(t, Settings{LibraryPaths: []string{"a.clap"}}.Validate())
}

func TestMatchesPluginEmptyFilterMatchesAll(t *testing.T) {
	s := Settings{}
	assert.True(t, s.MatchesPlugin("anything"))
}

func TestMatchesPluginHonorsFilter(t *testing.T) {
	s := Settings{PluginIDFilter: []string{"com.example.foo"}}
	assert.True(t, s.MatchesPlugin("com.example.foo"))
	assert.False(t, s.MatchesPlugin("com.example.bar"))
}

func TestMatchesTestHonorsFilter(t *testing.T) {
	s := Settings{TestNameFilter: []string{"scan-time"}}
	assert.True(t, s.MatchesTest("scan-time"))
	assert.False(t, s.MatchesTest("has-category"))
}
