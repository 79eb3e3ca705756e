package runner

import (
	"fmt"

	"github.com/clapcheck/clapcheck/internal/hostabi"
	"github.com/clapcheck/clapcheck/internal/pluginhost"
	"github.com/clapcheck/clapcheck/internal/pluginlib"
)

// LibraryContext is everything a library-scoped test case can observe:
// the loaded library and a freshly constructed host to create instances
// against.
type LibraryContext struct {
	Library *pluginlib.Library
	Host    *hostabi.Host
}

// PluginContext is everything a plugin-scoped test case can observe. The
// instance starts Uninitialized; test cases drive their own lifecycle
// transitions since different tests need different depths (some only
// check Init, others need to reach Processing).
type PluginContext struct {
	Library  *pluginlib.Library
	Host     *hostabi.Host
	PluginID string
}

// NewInstance is a convenience a test case uses to create a fresh
// instance of its target plugin, since most tests need their own
// instance rather than a shared one.
func (c *PluginContext) NewInstance() (*pluginhost.Instance, error) {
	return pluginhost.New(c.Library, c.Host, c.PluginID)
}

// LibraryTestFunc runs once per library, independent of any one plugin.
type LibraryTestFunc func(ctx *LibraryContext) (Verdict, string)

// PluginTestFunc runs once per plugin found in a library.
type PluginTestFunc func(ctx *PluginContext) (Verdict, string)

// TestCase is a named, registered check.
type TestCase struct {
	Name        string
	Description string

	Library LibraryTestFunc // nil for plugin-scoped cases
	Plugin  PluginTestFunc  // nil for library-scoped cases
}

// IsLibraryScoped reports whether the case runs once per library.
func (t TestCase) IsLibraryScoped() bool { return t.Library != nil }

var registry []TestCase

// Register adds a test case to the global registry. Called from
// internal/testcases init() functions; a duplicate name is a harness
// bug caught at startup rather than silently shadowing a prior case.
func Register(tc TestCase) {
	for _, existing := range registry {
		if existing.Name == tc.Name {
			panic(fmt.Sprintf("runner: duplicate test case name %q", tc.Name))
		}
	}
	if (tc.Library == nil) == (tc.Plugin == nil) {
		panic(fmt.Sprintf("runner: test case %q must set exactly one of Library or Plugin", tc.Name))
	}
	registry = append(registry, tc)
}

// All returns every registered test case, in registration order.
func All() []TestCase {
	return append([]TestCase(nil), registry...)
}

// Find looks up a registered test case by its stable name, used by the
// run-single-test child to resolve which case to execute.
func Find(name string) (TestCase, bool) {
	for _, tc := range registry {
		if tc.Name == name {
			return tc, true
		}
	}
	return TestCase{}, false
}
