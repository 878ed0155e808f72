// Package engine implements the automaton loop.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// One goroutine owns the Digit Store and the counter. A step is
//  1. pop one group of limbs (G limbs, 8 base-81 digits each)
//  2. record the step line (step, counter before, previous word, popped group)
//  3. split each limb into digits, least significant first, and feed them
//     through the transition table, accumulating the counter and the word
//  4. for each 64-bit word of the result, most significant first: scale the
//     store by 2^64 and add the word at the lowest live limb
//  5. advance the step clock and publish progress
//
// The value therefore moves from V to floor(V / M^G) * 2^(64G) + word.
//
// Terminal Event:
// The counter starts at 2. The moment it drops to 1 or below the automaton
// halts, mid-group if need be. Halting is the expected outcome of a run, not
// an error; Run reports it through Result.
//
// Parallelism:
// Only the scaling sub-step fans out (see package carry). Two steps never
// overlap.
//
// Durability:
// The step recorder is part of the correctness record; a failed write aborts
// the run. Checkpoint failures are logged and the loop keeps going.
package engine
