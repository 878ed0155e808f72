// Package store provides the SQLite-backed run ledger.
//
// The ledger records, per run:
//   - Runs: one row per invocation of the automaton, keyed by a UUIDv7 run ID
//   - Checkpoints: one row per successful checkpoint save
//   - Outcomes: how the run ended (halted, interrupted, failed)
//
// The ledger is bookkeeping only. The automaton never reads it back, and a
// run with no ledger behaves identically.
//
// # Ordering
//
//   - Runs are listed by started_at, then id COLLATE BINARY
//   - Checkpoints are listed by step, then id
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Labels are NFC-normalized before they are stored so that visually equal
// labels compare equal in history queries.
package store
