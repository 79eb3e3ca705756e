package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/clapcheck/clapcheck/internal/hostabi"
	"github.com/clapcheck/clapcheck/internal/pluginlib"
	"github.com/clapcheck/clapcheck/internal/settings"
	"github.com/google/uuid"
)

// libraryAndHost pairs a loaded library with the host instances are
// created against, so the single-test child can tear both down together.
type libraryAndHost struct {
	lib  *pluginlib.Library
	host *hostabi.Host
}

func (l *libraryAndHost) close() {
	l.host.Close()
	l.lib.Close()
}

func loadForSingleTest(path string) (*libraryAndHost, error) {
	lib, err := pluginlib.Load(path)
	if err != nil {
		return nil, err
	}
	return &libraryAndHost{lib: lib, host: hostabi.NewHost()}, nil
}

// noPluginID is the placeholder run-single-test accepts in the
// plugin-id-or-"(none)" positional slot for plugin-library-scoped cases.
const noPluginID = "(none)"

// runTestOutOfProcess respawns this same binary as
// "<exe> run-single-test <scope> <library-path> <plugin-id> <test-name> --output-file <path>"
// so a crashing plugin takes down only the child running that one test
// case, leaving every other test's already-collected result untouched.
func runTestOutOfProcess(cfg settings.Settings, scope, libraryPath, pluginID, testName string) TestResult {
	description := ""
	if tc, ok := Find(testName); ok {
		description = tc.Description
	}

	outFile := filepath.Join(os.TempDir(), fmt.Sprintf("clapcheck-%s.json", uuid.NewString()))
	defer os.Remove(outFile)

	exe, err := os.Executable()
	if err != nil {
		return newTestResult(testName, description, Crashed, err.Error())
	}

	pidArg := pluginID
	if pidArg == "" {
		pidArg = noPluginID
	}

	cmd := exec.Command(exe, "run-single-test", scope, libraryPath, pidArg, testName, "--output-file", outFile)
	if !cfg.HideTestOutput {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	runErr := cmd.Run()

	data, readErr := os.ReadFile(outFile)
	if readErr != nil {
		reason := "child produced no result file"
		if runErr != nil {
			reason = fmt.Sprintf("child exited: %v", runErr)
		}
		return newTestResult(testName, description, Crashed, reason)
	}

	var result TestResult
	if err := json.Unmarshal(data, &result); err != nil {
		return newTestResult(testName, description, Crashed, fmt.Sprintf("child wrote unparseable result: %v", err))
	}
	return result
}

// RunSingleTest is the run-single-test child entry point: it runs
// exactly one named test case against scope/libraryPath/pluginID and
// writes the resulting TestResult as JSON to outputFile. Intended to be
// called from cmd/clapcheck's hidden subcommand.
func RunSingleTest(scope, libraryPath, pluginID, testName, outputFile string) error {
	tc, ok := Find(testName)
	if !ok {
		return writeSingleResult(outputFile, newTestResult(testName, "", Crashed, fmt.Sprintf("unknown test case %q", testName)))
	}
	if pluginID == noPluginID {
		pluginID = ""
	}

	lib, err := loadForSingleTest(libraryPath)
	if err != nil {
		return writeSingleResult(outputFile, newTestResult(tc.Name, tc.Description, Crashed, err.Error()))
	}
	defer lib.close()

	var result TestResult
	switch scope {
	case "plugin-library":
		result = runOneLibraryCase(tc, &LibraryContext{Library: lib.lib, Host: lib.host})
	case "plugin":
		result = runOnePluginCase(tc, &PluginContext{Library: lib.lib, Host: lib.host, PluginID: pluginID})
	default:
		return fmt.Errorf("runner: unknown scope %q, want \"plugin-library\" or \"plugin\"", scope)
	}
	return writeSingleResult(outputFile, result)
}

func writeSingleResult(path string, result TestResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("runner: marshal result: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
