package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasFailuresDetectsOnlyFailedStatus(t *testing.T) {
	cases := []struct {
		name   string
		report Report
		want   bool
	}{
		{"empty", Report{}, false},
		{"all success", Report{
			PluginTests: map[string][]TestResult{
				"com.example.foo": {
					newTestResult("t1", "", Success, ""),
					newTestResult("t2", "", Skipped, ""),
				},
			},
		}, false},
		{"one failed in plugin-tests", Report{
			PluginTests: map[string][]TestResult{
				"com.example.foo": {
					newTestResult("t1", "", Success, ""),
					newTestResult("t2", "", Failed, "boom"),
				},
			},
		}, true},
		{"one failed in plugin-library-tests", Report{
			PluginLibraryTests: map[string][]TestResult{
				"/plugins/foo.clap": {newTestResult("load-library", "", Failed, "dlopen failed")},
			},
		}, true},
		{"crashed does not count as failed", Report{
			PluginTests: map[string][]TestResult{
				"com.example.foo": {newTestResult("t1", "", Crashed, "panic: boom")},
			},
		}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.report.HasFailures())
		})
	}
}

func TestMarshalValidatedProducesSchemaConformantOutput(t *testing.T) {
	report := Report{
		PluginLibraryTests: map[string][]TestResult{
			"/plugins/foo.clap": {newTestResult("scan-time", "times how long loading the library takes", Success, "")},
		},
		PluginTests: map[string][]TestResult{
			"com.example.foo": {newTestResult("scan-time", "times how long scanning the plugin takes", Success, "")},
		},
	}

	data, err := report.MarshalValidated()
	require.NoError(t, err)
	assert.Contains(t, string(data), "com.example.foo")
	assert.Contains(t, string(data), `"status":"success"`)
}
