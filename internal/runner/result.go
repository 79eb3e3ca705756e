// Package runner executes test cases against plugins, either in-process
// or in a supervised child process, and aggregates the results into the
// JSON-schema-validated tree a report is built from.
package runner

import (
	"encoding/json"
	"fmt"

	"github.com/clapcheck/clapcheck/internal/settings"
	"github.com/xeipuuv/gojsonschema"
)

// Verdict is the outcome of one test case against one plugin or library.
type Verdict string

const (
	Success Verdict = "success"
	Failed  Verdict = "failed"
	Skipped Verdict = "skipped"
	Warning Verdict = "warning"
	Crashed Verdict = "crashed"
)

// Status is a TestResult's outcome tag plus an optional detail string.
// Details is always present in the serialized form, null when empty.
type Status struct {
	Status  Verdict `json:"status"`
	Details *string `json:"details"`
}

// TestResult is one test case's outcome.
type TestResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

func newTestResult(name, description string, verdict Verdict, details string) TestResult {
	var d *string
	if details != "" {
		d = &details
	}
	return TestResult{Name: name, Description: description, Status: Status{Status: verdict, Details: d}}
}

// Report is the top-level result tree written to stdout: every
// library-scoped result keyed by the library path it ran against, and
// every plugin-scoped result keyed by the plugin ID it ran against.
type Report struct {
	PluginLibraryTests map[string][]TestResult `json:"plugin-library-tests"`
	PluginTests        map[string][]TestResult `json:"plugin-tests"`
}

// HasFailures reports whether the run has any Failed result, the signal
// used for the process exit code.
func (r Report) HasFailures() bool {
	for _, tests := range r.PluginLibraryTests {
		for _, t := range tests {
			if t.Status.Status == Failed {
				return true
			}
		}
	}
	for _, tests := range r.PluginTests {
		for _, t := range tests {
			if t.Status.Status == Failed {
				return true
			}
		}
	}
	return false
}

// MarshalValidated serializes the report and checks it against the
// result schema before returning, so a malformed report is caught here
// rather than surprising whatever downstream tool parses stdout.
func (r Report) MarshalValidated() ([]byte, error) {
	if r.PluginLibraryTests == nil {
		r.PluginLibraryTests = map[string][]TestResult{}
	}
	if r.PluginTests == nil {
		r.PluginTests = map[string][]TestResult{}
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("runner: marshal report: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(settings.ResultSchema)
	docLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("runner: validate report: %w", err)
	}
	if !result.Valid() {
		var msgs string
		for _, e := range result.Errors() {
			msgs += e.String() + "; "
		}
		return nil, fmt.Errorf("runner: report failed its own schema: %s", msgs)
	}
	return data, nil
}
