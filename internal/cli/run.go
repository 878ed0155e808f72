package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/limbwalk/internal/carry"
	"github.com/roach88/limbwalk/internal/checkpoint"
	"github.com/roach88/limbwalk/internal/config"
	"github.com/roach88/limbwalk/internal/engine"
	"github.com/roach88/limbwalk/internal/limbs"
	"github.com/roach88/limbwalk/internal/status"
	"github.com/roach88/limbwalk/internal/steplog"
	"github.com/roach88/limbwalk/internal/store"
	"github.com/roach88/limbwalk/internal/table"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigFile         string
	Checkpoint         string
	Restore            string
	CheckpointInterval time.Duration
	StatusInterval     time.Duration
	Workers            int
	ChunksPerWorker    int
	Group              int
	Compress           bool
	Ledger             string
	Label              string
	EventLog           string

	// IDGenerator allows overriding the run ID generator (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDGenerator store.IDGenerator

	// Table allows overriding the transition table (for testing).
	Table *table.Table
}

// RunReport summarizes a finished run.
type RunReport struct {
	RunID      string `json:"run_id,omitempty"`
	Outcome    string `json:"outcome"`
	Step       uint64 `json:"step"`
	Counter    int64  `json:"counter"`
	Limbs      int    `json:"limbs"`
	Checkpoint string `json:"checkpoint,omitempty"`
}

func (r RunReport) String() string {
	s := fmt.Sprintf("%s at step %d (counter %d, %d limbs)", r.Outcome, r.Step, r.Counter, r.Limbs)
	if r.Checkpoint != "" {
		s += "\ncheckpoint: " + r.Checkpoint
	}
	if r.RunID != "" {
		s += "\nrun: " + r.RunID
	}
	return s
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [log-file]",
		Short: "Run the automaton",
		Long: `Run the automaton from a fresh store or a restored checkpoint.

One line is appended to the log file per step:
  step counter previous_word current_group

The run stops at the terminal event (exit 0), on SIGINT/SIGTERM (a final
checkpoint is written, exit 0), or on a runtime error (exit 1).

Example:
  limbwalk run out.log --checkpoint state.ckpt --checkpoint-interval 5m
  limbwalk run out.log --restore state.ckpt --checkpoint state.ckpt --ledger runs.db
  limbwalk run --config limbwalk.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutomaton(opts, args, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")
	f.StringVar(&opts.Checkpoint, "checkpoint", "", "checkpoint file to write periodically")
	f.StringVar(&opts.Restore, "restore", "", "checkpoint file to resume from")
	f.DurationVar(&opts.CheckpointInterval, "checkpoint-interval", 10*time.Minute, "wall-clock time between checkpoints")
	f.DurationVar(&opts.StatusInterval, "status-interval", status.DefaultInterval, "time between status lines")
	f.IntVar(&opts.Workers, "workers", 0, "carry pass workers (0 = GOMAXPROCS)")
	f.IntVar(&opts.ChunksPerWorker, "chunks-per-worker", carry.DefaultChunksPerWorker, "carry pass chunks per worker")
	f.IntVar(&opts.Group, "group", engine.DefaultGroupLimbs, "limbs consumed per step (1-4)")
	f.BoolVar(&opts.Compress, "compress", false, "zstd-compress checkpoint bodies")
	f.StringVar(&opts.Ledger, "ledger", "", "SQLite run ledger")
	f.StringVar(&opts.Label, "label", "", "free-text run label for the ledger")
	f.StringVar(&opts.EventLog, "event-log", "", "append JSON log records to this file")

	return cmd
}

// resolveConfig loads the config file and applies explicitly set flags on top.
func resolveConfig(opts *RunOptions, args []string, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if len(args) == 1 {
		cfg.LogFile = args[0]
	}
	if f.Changed("checkpoint") {
		cfg.CheckpointFile = opts.Checkpoint
	}
	if f.Changed("restore") {
		cfg.RestoreFile = opts.Restore
	}
	if f.Changed("checkpoint-interval") {
		cfg.CheckpointInterval = opts.CheckpointInterval
	}
	if f.Changed("status-interval") {
		cfg.StatusInterval = opts.StatusInterval
	}
	if f.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if f.Changed("chunks-per-worker") {
		cfg.ChunksPerWorker = opts.ChunksPerWorker
	}
	if f.Changed("group") {
		cfg.GroupLimbs = opts.Group
	}
	if f.Changed("compress") {
		cfg.Compress = opts.Compress
	}
	if f.Changed("ledger") {
		cfg.Ledger = opts.Ledger
	}
	if f.Changed("label") {
		cfg.Label = opts.Label
	}
	if f.Changed("event-log") {
		cfg.EventLog = opts.EventLog
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}

	if cfg.LogFile == "" {
		return nil, errors.New("log file is required (argument or log_file in config)")
	}
	if cfg.GroupLimbs < 1 || cfg.GroupLimbs > engine.MaxGroupLimbs {
		return nil, fmt.Errorf("group must be in [1, %d], got %d", engine.MaxGroupLimbs, cfg.GroupLimbs)
	}
	if cfg.Workers < 0 || cfg.ChunksPerWorker < 1 {
		return nil, fmt.Errorf("workers must be >= 0 and chunks-per-worker >= 1")
	}
	return cfg, nil
}

func runAutomaton(opts *RunOptions, args []string, cmd *cobra.Command) error {
	cfg, err := resolveConfig(opts, args, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	console := &lockedWriter{w: cmd.ErrOrStderr()}
	logger, closeLog, err := newLogger(console, cfg.Level(), cfg.EventLog)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	defer closeLog()

	// Restore or start fresh
	digits := limbs.New()
	group := cfg.GroupLimbs
	var startOpts []engine.Option
	if cfg.RestoreFile != "" {
		logger.Info("restoring checkpoint", "path", cfg.RestoreFile)
		rec, err := checkpoint.Restore(cfg.RestoreFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to restore checkpoint", err)
		}
		digits, err = rec.Store()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to restore checkpoint", err)
		}
		if rec.Group != group {
			logger.Warn("checkpoint group overrides configured group",
				"checkpoint_group", rec.Group,
				"configured_group", group)
			group = rec.Group
		}
		startOpts = append(startOpts, engine.WithStart(rec.Step, rec.Counter, rec.Previous))
	}

	lw, err := steplog.Open(cfg.LogFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open log file", err)
	}
	logClosed := false
	defer func() {
		if !logClosed {
			lw.Close()
		}
	}()

	scalerOpts := []carry.Option{carry.WithChunksPerWorker(cfg.ChunksPerWorker)}
	if cfg.Workers > 0 {
		scalerOpts = append(scalerOpts, carry.WithWorkers(cfg.Workers))
	}
	scaler := carry.New(scalerOpts...)

	// Ledger (optional)
	var ldg *runLedger
	if cfg.Ledger != "" {
		st, err := store.Open(cfg.Ledger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open ledger", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing ledger", "error", closeErr)
			}
		}()
		gen := opts.IDGenerator
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		ldg = beginLedger(st, gen, logger, cfg, group, scaler.Workers(), startOpts != nil)
	}

	board := &status.Board{}
	autoOpts := append(startOpts,
		engine.WithGroupLimbs(group),
		engine.WithScaler(scaler),
		engine.WithRecorder(lw),
		engine.WithBoard(board),
		engine.WithLogger(logger),
	)
	if opts.Table != nil {
		autoOpts = append(autoOpts, engine.WithTable(opts.Table))
	}

	var mgr *checkpoint.Manager
	if cfg.CheckpointFile != "" {
		mgr = checkpoint.NewManager(cfg.CheckpointFile,
			checkpoint.WithInterval(cfg.CheckpointInterval),
			checkpoint.WithCompression(cfg.Compress),
			checkpoint.WithLogger(logger),
			checkpoint.WithOnSaved(ldg.checkpoint),
		)
		autoOpts = append(autoOpts, engine.WithCheckpointer(mgr))
	}

	a := engine.New(digits, autoOpts...)
	if ldg != nil {
		ldg.begin(a.Clock().Current(), a.Counter())
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	reporterCtx, stopReporter := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = status.NewReporter(board, console, cfg.StatusInterval).Run(reporterCtx)
	}()

	res, runErr := a.Run(ctx)
	stopReporter()
	wg.Wait()

	logClosed = true
	if err := lw.Close(); err != nil && runErr == nil {
		runErr = engine.NewLogWriteError(res.Step, err)
	}

	report := RunReport{
		RunID:   ldg.id(),
		Step:    res.Step,
		Counter: res.Counter,
		Limbs:   a.Store().Len(),
	}

	switch {
	case runErr == nil:
		report.Outcome = string(store.OutcomeHalted)
		ldg.finish(store.OutcomeHalted, res, nil)

	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		report.Outcome = string(store.OutcomeInterrupted)
		if mgr != nil {
			if err := mgr.Save(a.Snapshot()); err != nil {
				ldg.finish(store.OutcomeFailed, res, err)
				return WrapExitError(ExitFailure, "final checkpoint failed", err)
			}
			report.Checkpoint = mgr.Path()
		}
		ldg.finish(store.OutcomeInterrupted, res, nil)
		logger.Info("automaton stopped", "step", res.Step)

	default:
		ldg.finish(store.OutcomeFailed, res, runErr)
		return WrapExitError(ExitFailure, "automaton failed", runErr)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: console, Verbose: opts.Verbose}
	return formatter.Success(report)
}

// runLedger records one run. A nil *runLedger ignores every call.
// Ledger errors are logged and never stop the automaton.
type runLedger struct {
	st     *store.Store
	gen    store.IDGenerator
	logger *slog.Logger
	run    store.Run
	ok     bool
}

func beginLedger(st *store.Store, gen store.IDGenerator, logger *slog.Logger, cfg *config.Config, group, workers int, resumed bool) *runLedger {
	l := &runLedger{st: st, gen: gen, logger: logger}
	l.run = store.Run{
		Label:   cfg.Label,
		LogPath: cfg.LogFile,
		Params: store.Params{
			Group:              group,
			Workers:            workers,
			ChunksPerWorker:    cfg.ChunksPerWorker,
			CheckpointInterval: cfg.CheckpointInterval.String(),
			Compress:           cfg.Compress,
		},
	}
	if resumed {
		l.run.ResumedFrom = cfg.RestoreFile
	}
	return l
}

func (l *runLedger) begin(step uint64, counter int64) {
	l.run.StartedAt = time.Now()
	l.run.StartStep = step
	l.run.StartCounter = counter
	run, err := l.st.BeginRun(context.Background(), l.gen, l.run)
	if err != nil {
		l.logger.Warn("ledger unavailable, run will not be recorded", "error", err)
		return
	}
	l.run = run
	l.ok = true
	l.logger.Info("run recorded", "run_id", run.ID)
}

func (l *runLedger) id() string {
	if l == nil || !l.ok {
		return ""
	}
	return l.run.ID
}

func (l *runLedger) checkpoint(info checkpoint.Info) {
	if l == nil || !l.ok {
		return
	}
	err := l.st.RecordCheckpoint(context.Background(), store.Checkpoint{
		RunID:      l.run.ID,
		Step:       info.Step,
		Counter:    info.Counter,
		Limbs:      info.Limbs,
		Bytes:      info.Bytes,
		Compressed: info.Compressed,
		Path:       info.Path,
		SavedAt:    info.At,
	})
	if err != nil {
		l.logger.Warn("ledger checkpoint write failed", "step", info.Step, "error", err)
	}
}

func (l *runLedger) finish(kind store.OutcomeKind, res engine.Result, runErr error) {
	if l == nil || !l.ok {
		return
	}
	out := store.Outcome{
		RunID:      l.run.ID,
		Kind:       kind,
		Step:       res.Step,
		Counter:    res.Counter,
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	if err := l.st.FinishRun(context.Background(), out); err != nil {
		l.logger.Warn("ledger outcome write failed", "error", err)
	}
}

// lockedWriter serializes writes from the logger and the status reporter.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
