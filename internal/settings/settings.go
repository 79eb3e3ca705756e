// Package settings holds the validator-wide run configuration assembled
// from command-line flags (§4.1 Settings record).
package settings

import (
	"fmt"
	"strings"
)

// Settings controls what a run validates and how.
type Settings struct {
	// LibraryPaths lists the .clap bundle/shared-object paths to scan.
	LibraryPaths []string

	// PluginIDFilter restricts testing to these plugin IDs; empty means
	// every plugin found in LibraryPaths.
	PluginIDFilter []string

	// TestNameFilter restricts which test cases run by substring match
	// against the test's name; empty means every test.
	TestNameFilter []string

	// OutOfProcess runs every test case in its own child process instead
	// of in-process, isolating a crash to that one test case rather than
	// the whole run.
	OutOfProcess bool

	// HideTestOutput discards the stdout and stderr of every out-of-process
	// test child, which carry the plugin's own output and the log lines a
	// test case emits, including messages relayed through the host's log
	// extension. It has no effect when OutOfProcess is false.
	HideTestOutput bool

	// JSON requests machine-readable output on stdout instead of the
	// human-readable report.
	JSON bool
}

// Validate rejects configurations that cannot produce a meaningful run.
func (s Settings) Validate() error {
	if len(s.LibraryPaths) == 0 {
		return fmt.Errorf("settings: at least one library path is required")
	}
	return nil
}

// MatchesPlugin reports whether id passes PluginIDFilter.
func (s Settings) MatchesPlugin(id string) bool {
	if len(s.PluginIDFilter) == 0 {
		return true
	}
	for _, want := range s.PluginIDFilter {
		if want == id {
			return true
		}
	}
	return false
}

// MatchesTest reports whether name passes TestNameFilter.
func (s Settings) MatchesTest(name string) bool {
	if len(s.TestNameFilter) == 0 {
		return true
	}
	for _, want := range s.TestNameFilter {
		if strings.Contains(name, want) {
			return true
		}
	}
	return false
}
