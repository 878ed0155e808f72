// Package harness runs YAML scenarios against the automaton.
//
// A scenario fixes a transition table, a starting state and a step budget,
// runs the automaton in memory, and checks the outcome, the step log and the
// final store value.
//
// # Scenario Format
//
//	name: countdown
//	description: "Every digit subtracts one, so a counter of 40 lasts five steps"
//	group: 1
//	max_steps: 20
//	table:
//	  base: uniform            # default | uniform
//	  entry: { delta: -1, symbol: 7 }
//	  overrides:
//	    - { digit: 0, delta: 1, symbol: 2 }
//	start:
//	  counter: 40
//	  value: "1234567"         # decimal; omitted means zero
//	expect:
//	  halted: true
//	  step: 4
//	  counter: 1
//	assertions:
//	  - type: log_line
//	    step: 0
//	    line: "0 40 0 0"
//	  - type: log_count
//	    count: 5
//
// # Assertion Types
//
//   - log_line: The line logged for a step matches exactly
//   - log_count: The number of logged lines
//   - final_value: The decimal value of the store when the run ended
//   - counter_min: The counter never dropped below a bound before the end
//
// # Deterministic Testing
//
// Scenarios run the sequential carry pass with no wall clock involved, so the
// same scenario always produces byte-identical logs. RunWithGolden compares
// the log against testdata/golden/{name}.golden.
package harness
