package runner

import (
	"fmt"

	"github.com/clapcheck/clapcheck/internal/hostabi"
	"github.com/clapcheck/clapcheck/internal/pluginlib"
	"github.com/clapcheck/clapcheck/internal/settings"
	"github.com/rs/zerolog/log"
)

// Run executes every registered test case against every library named
// in cfg.LibraryPaths, filtered by plugin ID and test name, and returns
// the aggregated report. OutOfProcess dispatches each test case to a
// supervised child instead of running it here.
func Run(cfg settings.Settings) Report {
	report := Report{
		PluginLibraryTests: map[string][]TestResult{},
		PluginTests:        map[string][]TestResult{},
	}
	for _, path := range cfg.LibraryPaths {
		runLibrary(cfg, path, &report)
	}
	return report
}

func runLibrary(cfg settings.Settings, path string, report *Report) {
	lib, err := pluginlib.Load(path)
	if err != nil {
		report.PluginLibraryTests[path] = []TestResult{
			newTestResult("load-library", "Loads the library's shared object and its clap_entry symbol.", Failed, err.Error()),
		}
		return
	}
	defer lib.Close()

	host := hostabi.NewHost()
	defer host.Close()

	libCtx := &LibraryContext{Library: lib, Host: host}
	report.PluginLibraryTests[path] = runLibraryScoped(cfg, libCtx, path)

	for _, meta := range lib.Metadata() {
		if !cfg.MatchesPlugin(meta.ID) {
			continue
		}
		pluginCtx := &PluginContext{Library: lib, Host: host, PluginID: meta.ID}
		report.PluginTests[meta.ID] = runPluginScoped(cfg, pluginCtx, path)
	}
}

// runLibraryScoped runs every library-scoped case once, each in its own
// child process when cfg.OutOfProcess is set so a crash in one case
// cannot invalidate the cases that already ran.
func runLibraryScoped(cfg settings.Settings, ctx *LibraryContext, path string) []TestResult {
	var out []TestResult
	for _, tc := range All() {
		if !tc.IsLibraryScoped() || !cfg.MatchesTest(tc.Name) {
			continue
		}
		if cfg.OutOfProcess {
			out = append(out, runTestOutOfProcess(cfg, "plugin-library", path, "", tc.Name))
		} else {
			out = append(out, runOneLibraryCase(tc, ctx))
		}
	}
	return out
}

func runPluginScoped(cfg settings.Settings, ctx *PluginContext, path string) []TestResult {
	var out []TestResult
	for _, tc := range All() {
		if tc.IsLibraryScoped() || !cfg.MatchesTest(tc.Name) {
			continue
		}
		if cfg.OutOfProcess {
			out = append(out, runTestOutOfProcess(cfg, "plugin", path, ctx.PluginID, tc.Name))
		} else {
			out = append(out, runOnePluginCase(tc, ctx))
		}
	}
	return out
}

func runOneLibraryCase(tc TestCase, ctx *LibraryContext) (result TestResult) {
	result = newTestResult(tc.Name, tc.Description, Crashed, "")
	defer func() {
		if r := recover(); r != nil {
			result = newTestResult(tc.Name, tc.Description, Crashed, fmt.Sprintf("panic: %v", r))
		}
	}()
	verdict, details := tc.Library(ctx)
	result = newTestResult(tc.Name, tc.Description, verdict, details)
	return result
}

func runOnePluginCase(tc TestCase, ctx *PluginContext) (result TestResult) {
	result = newTestResult(tc.Name, tc.Description, Crashed, "")
	defer func() {
		if r := recover(); r != nil {
			result = newTestResult(tc.Name, tc.Description, Crashed, fmt.Sprintf("panic: %v", r))
			log.Error().Str("test", tc.Name).Str("plugin", ctx.PluginID).Interface("panic", r).Msg("test case panicked")
		}
	}()
	verdict, details := tc.Plugin(ctx)
	result = newTestResult(tc.Name, tc.Description, verdict, details)
	return result
}
