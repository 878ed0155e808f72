package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/limbwalk/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to <scenarios-dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run automaton scenarios",
		Long: `Run YAML scenarios against the automaton in memory.

Each scenario fixes a table, a starting state and a step budget, then checks
the outcome, the step log and the final value. When a golden file exists for
a scenario its step log must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  limbwalk test ./scenarios
  limbwalk test ./scenarios --filter "count*"
  limbwalk test ./scenarios --update
  limbwalk test ./scenarios --format json`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid filter pattern: %v", err))
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(scenariosDir, "golden")
	}

	paths, err := scenarioPaths(scenariosDir, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to find scenarios: %w", err)
	}

	asJSON := opts.Format == "json"
	w := cmd.OutOrStdout()
	if len(paths) == 0 && !asJSON {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	result := TestResult{Scenarios: []ScenarioResult{}, Total: len(paths)}
	for _, path := range paths {
		sr := runScenario(path, goldenDir, opts.Update)
		if !asJSON {
			printScenario(w, sr)
		}
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if asJSON {
		if err := writeTestJSON(w, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	if !asJSON {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
	return nil
}

// scenarioPaths lists the .yaml and .yml files under dir whose base name,
// extension stripped, matches filter. An empty filter matches everything.
func scenarioPaths(dir, filter string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil || !ok {
				return err
			}
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

func runScenario(path, goldenDir string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(path),
			Errors: []string{fmt.Sprintf("load error: %v", err)},
		}
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	goldenPath := filepath.Join(goldenDir, scenario.Name+".golden")
	if err := checkGolden(goldenPath, []byte(harness.JoinLines(result.Lines)), update); err != nil {
		result.AddError(err)
	}

	out := ScenarioResult{Name: scenario.Name, Pass: result.Pass}
	for _, e := range result.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return out
}

// checkGolden compares log against the golden file at path, or rewrites
// the file when update is set. A missing golden file is not an error.
func checkGolden(path string, log []byte, update bool) error {
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, log, 0644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return fmt.Errorf("failed to read golden file: %w", err)
	case !bytes.Equal(want, log):
		return fmt.Errorf("step log does not match %s (run with --update to regenerate)", path)
	}
	return nil
}

func printScenario(w io.Writer, r ScenarioResult) {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// writeTestJSON emits the whole run as one envelope. A failing run carries
// both the per-scenario data and an E401 error.
func writeTestJSON(w io.Writer, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    ErrCodeScenarioFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
