package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterPanicsOnDuplicateName(t *testing.T) {
	defer func() {
		r := recover()
		assert.NotNil(t, r)
	}()
	name := "duplicate-test-for-unit-test"
	Register(TestCase{Name: name, Library: func(*LibraryContext) (Verdict, string) { return Success, "" }})
	Register(TestCase{Name: name, Library: func(*LibraryContext) (Verdict, string) { return Success, "" }})
}

func TestRegisterPanicsWhenNeitherScopeSet(t *testing.T) {
	defer func() {
		r := recover()
		assert.NotNil(t, r)
	}()
	Register(TestCase{Name: "neither-scope-set"})
}

func TestIsLibraryScoped(t *testing.T) {
	libCase := TestCase{Name: "lib", Library: func(*LibraryContext) (Verdict, string) { return Success, "" }}
	pluginCase := TestCase{Name: "plugin", Plugin: func(*PluginContext) (Verdict, string) { return Success, "" }}
	assert.True(t, libCase.IsLibraryScoped())
	assert.False(t, pluginCase.IsLibraryScoped())
}
