// Command clapcheck validates CLAP plugins against the host-side
// conformance checks this module implements.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/clapcheck/clapcheck/internal/pluginlib"
	"github.com/clapcheck/clapcheck/internal/runner"
	"github.com/clapcheck/clapcheck/internal/settings"

	_ "github.com/clapcheck/clapcheck/internal/testcases"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "clapcheck",
		Short:         "Validate CLAP plugins against the conformance test suite",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newRunSingleTestCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var (
		pluginFilter []string
		testFilter   []string
		inProcess    bool
		hideOutput   bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "validate <library-path>...",
		Short: "Run the conformance suite against one or more plugin libraries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := settings.Settings{
				LibraryPaths:   args,
				PluginIDFilter: pluginFilter,
				TestNameFilter: testFilter,
				OutOfProcess:   !inProcess,
				HideTestOutput: hideOutput,
				JSON:           jsonOutput,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			report := runner.Run(cfg)

			if cfg.JSON {
				data, err := report.MarshalValidated()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				printHumanReport(report)
			}

			if report.HasFailures() {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&pluginFilter, "plugin-id", nil, "restrict to these plugin IDs (repeatable)")
	cmd.Flags().StringSliceVar(&testFilter, "test-filter", nil, "restrict to tests whose name contains one of these strings (repeatable)")
	cmd.Flags().BoolVar(&inProcess, "in-process", false, "run every test case in this process instead of a supervised child, so a crashing plugin takes down the whole run")
	cmd.Flags().BoolVar(&hideOutput, "hide-output", false, "suppress per-test log output")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result tree as JSON instead of a human report")
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plugins or test cases",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "plugins <library-path>...",
		Short: "List every plugin a library declares",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				lib, err := pluginlib.Load(path)
				if err != nil {
					return err
				}
				for _, m := range lib.Metadata() {
					fmt.Printf("%s\t%s\t%s\n", path, m.ID, m.Name)
				}
				lib.Close()
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "tests",
		Short: "List every registered test case",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, tc := range runner.All() {
				scope := "plugin"
				if tc.IsLibraryScoped() {
					scope = "library"
				}
				fmt.Printf("%s\t%s\t%s\n", tc.Name, scope, tc.Description)
			}
			return nil
		},
	})
	return cmd
}

// newRunSingleTestCmd is the hidden child entry point used by default
// (and unless --in-process is given) to isolate one test case in its
// own process.
func newRunSingleTestCmd() *cobra.Command {
	var outputFile string
	cmd := &cobra.Command{
		Use:    `run-single-test <plugin-library|plugin> <library-path> <plugin-id-or-"(none)"> <test-name>`,
		Hidden: true,
		Args:   cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFile == "" {
				return fmt.Errorf("run-single-test: --output-file is required")
			}
			scope, libraryPath, pluginID, testName := args[0], args[1], args[2], args[3]
			return runner.RunSingleTest(scope, libraryPath, pluginID, testName, outputFile)
		},
	}
	cmd.Flags().StringVar(&outputFile, "output-file", "", "path to write the test case's JSON result to")
	return cmd
}

func printHumanReport(r runner.Report) {
	for _, path := range sortedKeys(r.PluginLibraryTests) {
		fmt.Printf("%s\n", path)
		for _, t := range r.PluginLibraryTests[path] {
			printTestLine(t)
		}
	}
	for _, id := range sortedKeys(r.PluginTests) {
		fmt.Printf("%s\n", id)
		for _, t := range r.PluginTests[id] {
			printTestLine(t)
		}
	}
}

func printTestLine(t runner.TestResult) {
	fmt.Printf("  [%s] %s", t.Status.Status, t.Name)
	if t.Status.Details != nil && *t.Status.Details != "" {
		fmt.Printf(" - %s", *t.Status.Details)
	}
	fmt.Println()
}

func sortedKeys(m map[string][]runner.TestResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
