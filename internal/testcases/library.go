// Package testcases registers the concrete checks clapcheck ships with
// against internal/runner's registry (§4.8).
package testcases

import (
	"fmt"
	"time"

	"github.com/clapcheck/clapcheck/internal/presets"
	"github.com/clapcheck/clapcheck/internal/runner"
)

func init() {
	runner.Register(runner.TestCase{
		Name:        "scan-time",
		Description: "factory metadata enumeration completes within a reasonable time budget",
		Library:     scanTime,
	})
	runner.Register(runner.TestCase{
		Name:        "plugin-ids-are-unique",
		Description: "no two plugins in a library share a stable ID",
		Library:     pluginIDsAreUnique,
	})
	runner.Register(runner.TestCase{
		Name:        "presets-from-discovery",
		Description: "every preset a discovery provider reports names a plugin ID the library actually has",
		Library:     presetsFromDiscovery,
	})
}

// scanTimeBudget is how long factory metadata enumeration may take
// before scan-time reports a warning; an overrun is never a failure.
const scanTimeBudget = 100 * time.Millisecond

func scanTime(ctx *runner.LibraryContext) (runner.Verdict, string) {
	start := time.Now()
	_ = ctx.Library.Metadata()
	elapsed := time.Since(start)
	if elapsed > scanTimeBudget {
		return runner.Warning, fmt.Sprintf("factory metadata scan took %d ms, budget is %d ms", elapsed.Milliseconds(), scanTimeBudget.Milliseconds())
	}
	return runner.Success, ""
}

func pluginIDsAreUnique(ctx *runner.LibraryContext) (runner.Verdict, string) {
	seen := map[string]bool{}
	for _, m := range ctx.Library.Metadata() {
		if seen[m.ID] {
			return runner.Failed, fmt.Sprintf("duplicate plugin id %q", m.ID)
		}
		seen[m.ID] = true
	}
	return runner.Success, ""
}

func presetsFromDiscovery(ctx *runner.LibraryContext) (runner.Verdict, string) {
	factoryPtr := ctx.Library.PresetDiscoveryFactory()
	if factoryPtr == nil {
		return runner.Skipped, "library has no preset-discovery factory"
	}

	known := map[string]bool{}
	for _, m := range ctx.Library.Metadata() {
		known[m.ID] = true
	}

	results, err := presets.Discover(factoryPtr)
	if err != nil {
		return runner.Failed, err.Error()
	}

	for _, pr := range results {
		for locName, found := range pr.Presets {
			for _, p := range found {
				for _, pid := range p.PluginIDs {
					if pid.ABI != "clap" {
						continue
					}
					if !known[pid.ID] {
						return runner.Failed, fmt.Sprintf("provider %q location %q: preset %q names unknown plugin id %q", pr.Descriptor.ID, locName, p.Name, pid.ID)
					}
				}
			}
		}
	}
	return runner.Success, ""
}
