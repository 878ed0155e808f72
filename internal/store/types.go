package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a run ID has no row.
var ErrNotFound = errors.New("run not found")

// OutcomeKind is how a run ended.
type OutcomeKind string

const (
	OutcomeHalted      OutcomeKind = "halted"
	OutcomeInterrupted OutcomeKind = "interrupted"
	OutcomeFailed      OutcomeKind = "failed"
)

// Params are the tuning knobs a run was started with.
type Params struct {
	Group              int    `json:"group"`
	Workers            int    `json:"workers"`
	ChunksPerWorker    int    `json:"chunks_per_worker"`
	CheckpointInterval string `json:"checkpoint_interval"`
	Compress           bool   `json:"compress"`
}

// Run is one invocation of the automaton.
type Run struct {
	ID           string
	Label        string
	StartedAt    time.Time
	StartStep    uint64
	StartCounter int64
	ResumedFrom  string // checkpoint path, empty for a fresh run
	LogPath      string
	Params       Params
}

// Checkpoint is one successful checkpoint save.
type Checkpoint struct {
	RunID      string
	Step       uint64
	Counter    int64
	Limbs      int
	Bytes      int64
	Compressed bool
	Path       string
	SavedAt    time.Time
}

// Outcome records how a run ended.
type Outcome struct {
	RunID      string
	Kind       OutcomeKind
	Step       uint64
	Counter    int64
	Error      string
	FinishedAt time.Time
}

// RunSummary is a run with its checkpoint count and outcome, if any.
type RunSummary struct {
	Run
	Checkpoints    int
	LastCheckpoint *uint64
	Outcome        *Outcome
}
