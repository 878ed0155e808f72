package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden step logs live, relative to the test package.
const GoldenDir = "testdata/golden"

// newGoldie creates a goldie instance with the harness defaults.
func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
}

// AssertGolden compares the step log of r against testdata/golden/{name}.golden.
// Run tests with -update to rewrite the golden file.
func AssertGolden(t *testing.T, name string, r *Result) {
	t.Helper()
	newGoldie(t).Assert(t, name, []byte(JoinLines(r.Lines)))
}

// RunWithGolden runs the scenario, fails the test on any mismatch, and
// compares the step log against the scenario's golden file.
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()
	r, err := Run(s)
	if err != nil {
		t.Fatalf("run scenario %s: %v", s.Name, err)
	}
	for _, e := range r.Errors {
		t.Errorf("scenario %s: %v", s.Name, e)
	}
	AssertGolden(t, s.Name, r)
	return r
}

// JoinLines renders log lines the way the step log file stores them.
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
