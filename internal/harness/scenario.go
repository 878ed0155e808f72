package harness

import (
	"bytes"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/limbwalk/internal/engine"
	"github.com/roach88/limbwalk/internal/table"
)

// Scenario defines one automaton run and what it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Group is the number of limbs consumed per step. Zero means the default.
	Group int `yaml:"group,omitempty"`

	// MaxSteps bounds the run. The run stops earlier if the automaton halts.
	MaxSteps int `yaml:"max_steps"`

	// Table selects the transition table.
	Table TableSpec `yaml:"table,omitempty"`

	// Start is the initial automaton state.
	Start StartSpec `yaml:"start,omitempty"`

	// Expect checks the outcome of the run.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the step log and final state.
	// Supported types: log_line, log_count, final_value, counter_min
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// TableSpec describes a transition table.
type TableSpec struct {
	// Base is "default" (the production table) or "uniform".
	Base string `yaml:"base,omitempty"`

	// Entry fills every digit when Base is "uniform".
	Entry *EntrySpec `yaml:"entry,omitempty"`

	// Overrides replace single digits after the base is built.
	Overrides []OverrideSpec `yaml:"overrides,omitempty"`
}

// EntrySpec is one table entry.
type EntrySpec struct {
	Delta  int8  `yaml:"delta"`
	Symbol uint8 `yaml:"symbol"`
}

// OverrideSpec replaces the entry for one digit.
type OverrideSpec struct {
	Digit  uint8 `yaml:"digit"`
	Delta  int8  `yaml:"delta"`
	Symbol uint8 `yaml:"symbol"`
}

// StartSpec is the initial state. Zero values mean a fresh run.
type StartSpec struct {
	Counter *int64 `yaml:"counter,omitempty"`
	Value   string `yaml:"value,omitempty"`
}

// ExpectClause specifies the expected outcome.
type ExpectClause struct {
	Halted  bool    `yaml:"halted"`
	Step    *uint64 `yaml:"step,omitempty"`
	Counter *int64  `yaml:"counter,omitempty"`
}

// Assertion validates the log or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "log_line": line logged for Step equals Line
	// - "log_count": exactly Count lines were logged
	// - "final_value": store value equals Value (decimal)
	// - "counter_min": every logged counter is >= Min
	Type string `yaml:"type"`

	Step  uint64 `yaml:"step,omitempty"`
	Line  string `yaml:"line,omitempty"`
	Count int    `yaml:"count,omitempty"`
	Value string `yaml:"value,omitempty"`
	Min   int64  `yaml:"min,omitempty"`
}

// Assertion type constants.
const (
	AssertLogLine    = "log_line"
	AssertLogCount   = "log_count"
	AssertFinalValue = "final_value"
	AssertCounterMin = "counter_min"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive")
	}
	if s.Group < 0 || s.Group > engine.MaxGroupLimbs {
		return fmt.Errorf("group must be in [1, %d]", engine.MaxGroupLimbs)
	}

	switch s.Table.Base {
	case "", "default":
		if s.Table.Entry != nil {
			return fmt.Errorf("table.entry is only valid with base: uniform")
		}
	case "uniform":
		if s.Table.Entry == nil {
			return fmt.Errorf("table.entry is required with base: uniform")
		}
	default:
		return fmt.Errorf("unknown table base %q", s.Table.Base)
	}
	for i, o := range s.Table.Overrides {
		if o.Digit >= table.Size {
			return fmt.Errorf("table.overrides[%d]: digit %d out of range", i, o.Digit)
		}
	}

	if s.Start.Value != "" {
		v, ok := new(big.Int).SetString(s.Start.Value, 10)
		if !ok || v.Sign() < 0 {
			return fmt.Errorf("start.value %q is not a non-negative decimal integer", s.Start.Value)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertLogLine:
			if a.Line == "" {
				return fmt.Errorf("assertions[%d]: log_line requires line", i)
			}
		case AssertLogCount, AssertCounterMin:
		case AssertFinalValue:
			if _, ok := new(big.Int).SetString(a.Value, 10); !ok {
				return fmt.Errorf("assertions[%d]: final_value requires a decimal value", i)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}

	return nil
}

// buildTable materializes the table a scenario describes.
func (s *Scenario) buildTable() *table.Table {
	var t table.Table
	if s.Table.Base == "uniform" {
		t = *table.Uniform(table.Entry{Delta: s.Table.Entry.Delta, Symbol: s.Table.Entry.Symbol})
	} else {
		t = *table.Default()
	}
	for _, o := range s.Table.Overrides {
		t[o.Digit] = table.Entry{Delta: o.Delta, Symbol: o.Symbol}
	}
	return &t
}
