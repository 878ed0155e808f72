package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/roach88/limbwalk/internal/carry"
	"github.com/roach88/limbwalk/internal/fixmod"
	"github.com/roach88/limbwalk/internal/limbs"
	"github.com/roach88/limbwalk/internal/status"
	"github.com/roach88/limbwalk/internal/table"
)

// InitialCounter is the counter value of a fresh run.
const InitialCounter = 2

// HaltThreshold is the largest counter value that ends the run.
const HaltThreshold = 1

// DefaultGroupLimbs is the number of limbs consumed per step (16 digits).
const DefaultGroupLimbs = 2

// MaxGroupLimbs bounds the group width.
const MaxGroupLimbs = 4

// Scaler multiplies the whole store by 2^shift.
// Implemented by carry.Pass.
type Scaler interface {
	Scale(s *limbs.Store, shift uint) error
}

// ScalerFunc adapts a function to Scaler.
type ScalerFunc func(s *limbs.Store, shift uint) error

// Scale calls f.
func (f ScalerFunc) Scale(s *limbs.Store, shift uint) error { return f(s, shift) }

// StepRecord is one line of the step log.
// Words are big-endian 64-bit words; slices are reused after Record returns.
type StepRecord struct {
	Step     uint64
	Counter  int64    // counter before the step
	Previous []uint64 // word produced by the previous step
	Current  []uint64 // value of the popped group
}

// Recorder persists step records. A Recorder error aborts the run.
type Recorder interface {
	Record(StepRecord) error
}

// Snapshot is the state handed to a Checkpointer between steps.
// Store and Previous are only valid for the duration of the call.
type Snapshot struct {
	Step     uint64
	Counter  int64
	Group    int
	Previous []uint64
	Store    *limbs.Store
}

// Checkpointer persists snapshots. Errors are logged and ignored.
type Checkpointer interface {
	MaybeSave(Snapshot) error
}

// State is the automaton's lifecycle state.
type State int

const (
	// StateRunning accepts further steps.
	StateRunning State = iota
	// StateHalted is terminal: the counter breached the threshold.
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result summarizes a Run.
type Result struct {
	Halted bool
	// Step is the index of the halting step when Halted, otherwise the index
	// of the next step to run.
	Step    uint64
	Counter int64
}

// Automaton is the single-writer digit-rewriting loop.
//
// Thread-safety model:
//   - Step()/Run(): must be called from exactly one goroutine
//   - Clock().Current(): safe from any goroutine
//   - status.Board: safe from any goroutine
type Automaton struct {
	store   *limbs.Store
	table   *table.Table
	scaler  Scaler
	clock   *Clock
	counter int64
	group   int
	state   State

	popped []uint64 // limbs of the current group, lowest first
	cur    []uint64 // popped group value, big-endian words
	word   []uint64 // produced word, big-endian words
	prev   []uint64
	digits [fixmod.LimbDigits]uint8

	startPrev []uint64

	recorder     Recorder
	checkpointer Checkpointer
	board        *status.Board
	logger       *slog.Logger
}

// Option configures an Automaton.
type Option func(*Automaton)

// WithTable replaces the transition table.
func WithTable(t *table.Table) Option {
	return func(a *Automaton) {
		a.table = t
	}
}

// WithScaler sets the carry pass used for reinsertion.
// Default: sequential scaling on the loop goroutine.
func WithScaler(s Scaler) Option {
	return func(a *Automaton) {
		a.scaler = s
	}
}

// WithGroupLimbs sets the number of limbs consumed per step.
// Values outside [1, MaxGroupLimbs] are clamped.
func WithGroupLimbs(n int) Option {
	return func(a *Automaton) {
		a.group = min(max(n, 1), MaxGroupLimbs)
	}
}

// WithStart resumes from a restored step index, counter and previous word.
// prev may be nil; it is right-aligned into the group's word width.
func WithStart(step uint64, counter int64, prev []uint64) Option {
	return func(a *Automaton) {
		a.clock = NewClockAt(step)
		a.counter = counter
		a.startPrev = prev
	}
}

// WithRecorder sets the step log.
func WithRecorder(r Recorder) Option {
	return func(a *Automaton) {
		a.recorder = r
	}
}

// WithCheckpointer sets the checkpoint sink consulted after every step.
func WithCheckpointer(c Checkpointer) Option {
	return func(a *Automaton) {
		a.checkpointer = c
	}
}

// WithBoard sets the status board progress is published to.
func WithBoard(b *status.Board) Option {
	return func(a *Automaton) {
		a.board = b
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Automaton) {
		a.logger = l
	}
}

// New creates an automaton over store. A fresh store and no WithStart option
// give step 0, counter 2.
func New(store *limbs.Store, opts ...Option) *Automaton {
	a := &Automaton{
		store:   store,
		table:   table.Default(),
		clock:   NewClock(),
		counter: InitialCounter,
		group:   DefaultGroupLimbs,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.scaler == nil {
		a.scaler = ScalerFunc(carry.ScaleSequential)
	}

	a.popped = make([]uint64, a.group)
	a.cur = make([]uint64, a.group)
	a.word = make([]uint64, a.group)
	a.prev = make([]uint64, a.group)
	if n := len(a.startPrev); n > 0 {
		copy(a.prev[max(a.group-n, 0):], a.startPrev[max(n-a.group, 0):])
	}
	a.startPrev = nil
	a.publish()
	return a
}

// Clock returns the step clock.
func (a *Automaton) Clock() *Clock { return a.clock }

// Counter returns the current counter.
func (a *Automaton) Counter() int64 { return a.counter }

// State returns the lifecycle state.
func (a *Automaton) State() State { return a.state }

// Group returns the number of limbs consumed per step.
func (a *Automaton) Group() int { return a.group }

// Store returns the Digit Store. Only the loop goroutine may touch it.
func (a *Automaton) Store() *limbs.Store { return a.store }

// Snapshot returns the state between steps.
func (a *Automaton) Snapshot() Snapshot {
	return Snapshot{
		Step:     a.clock.Current(),
		Counter:  a.counter,
		Group:    a.group,
		Previous: a.prev,
		Store:    a.store,
	}
}

// Step runs one automaton step. It returns true once the automaton has halted;
// further calls are no-ops.
func (a *Automaton) Step() (halted bool, err error) {
	if a.state == StateHalted {
		return true, nil
	}
	step := a.clock.Current()
	defer func() {
		if r := recover(); r != nil {
			re, ok := r.(*fixmod.RangeError)
			if !ok {
				panic(r)
			}
			err = NewInvariantError(step, re)
		}
	}()

	for j := range a.popped {
		a.popped[j] = a.store.Pop()
	}
	groupValue(a.popped, a.cur)

	if a.recorder != nil {
		rec := StepRecord{Step: step, Counter: a.counter, Previous: a.prev, Current: a.cur}
		if err := a.recorder.Record(rec); err != nil {
			return false, NewLogWriteError(step, err)
		}
	}

	clear(a.word)
	for _, limb := range a.popped {
		fixmod.Split(limb, &a.digits)
		for _, d := range a.digits {
			e := a.table.Lookup(d)
			a.counter += int64(e.Delta)
			if a.counter <= HaltThreshold {
				a.state = StateHalted
				return true, nil
			}
			shiftIn(a.word, e.Symbol)
		}
	}

	for _, w := range a.word {
		if err := a.scaler.Scale(a.store, 64); err != nil {
			return false, NewScaleError(step, err)
		}
		a.store.Add(a.store.Head(), w)
	}

	copy(a.prev, a.word)
	a.clock.Next()
	a.publish()
	return false, nil
}

// Run steps until the terminal event, an error, or ctx is done.
// Cancellation is only observed between steps.
func (a *Automaton) Run(ctx context.Context) (Result, error) {
	a.logger.Info("automaton starting",
		"step", a.clock.Current(),
		"counter", a.counter,
		"limbs", a.store.Len(),
		"group", a.group,
	)

	for {
		select {
		case <-ctx.Done():
			return a.result(), ctx.Err()
		default:
		}

		halted, err := a.Step()
		if err != nil {
			a.logger.Error("automaton failed", "step", a.clock.Current(), "error", err)
			return a.result(), err
		}
		if halted {
			a.logger.Info("terminal event",
				"step", a.clock.Current(),
				"counter", a.counter,
			)
			return a.result(), nil
		}

		if a.checkpointer != nil {
			if err := a.checkpointer.MaybeSave(a.Snapshot()); err != nil {
				a.logger.Warn("checkpoint failed, continuing without persistence",
					"step", a.clock.Current(),
					"error", err,
				)
			}
		}
	}
}

func (a *Automaton) result() Result {
	return Result{
		Halted:  a.state == StateHalted,
		Step:    a.clock.Current(),
		Counter: a.counter,
	}
}

func (a *Automaton) publish() {
	if a.board == nil {
		return
	}
	a.board.Publish(status.Snapshot{
		Step:    a.clock.Current(),
		Counter: a.counter,
		Limbs:   a.store.Len(),
		Pages:   a.store.PageCount(),
	})
}

// shiftIn appends one byte at the low end of a big-endian word.
func shiftIn(word []uint64, b uint8) {
	last := len(word) - 1
	for i := 0; i < last; i++ {
		word[i] = word[i]<<8 | word[i+1]>>56
	}
	word[last] = word[last]<<8 | uint64(b)
}

// groupValue writes Σ group[i]·M^i into out as big-endian words.
func groupValue(group, out []uint64) {
	clear(out)
	for i := len(group) - 1; i >= 0; i-- {
		carry := group[i]
		for j := len(out) - 1; j >= 0; j-- {
			hi, lo := bits.Mul64(out[j], fixmod.M)
			var c uint64
			out[j], c = bits.Add64(lo, carry, 0)
			carry = hi + c
		}
	}
}
