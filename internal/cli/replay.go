package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/limbwalk/internal/checkpoint"
	"github.com/roach88/limbwalk/internal/engine"
	"github.com/roach88/limbwalk/internal/limbs"
	"github.com/roach88/limbwalk/internal/steplog"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Restore string
	Group   int
	Limit   int
}

// ReplayResult holds the outcome of replaying a step log.
type ReplayResult struct {
	LogPath   string            `json:"log_path"`
	Restore   string            `json:"restore,omitempty"`
	Group     int               `json:"group"`
	StartStep uint64            `json:"start_step"`
	Checked   int               `json:"checked"`
	Skipped   int               `json:"skipped"`
	Halted    bool              `json:"halted"`
	NextStep  uint64            `json:"next_step"`
	Match     bool              `json:"match"`
	Mismatch  *steplog.Mismatch `json:"mismatch,omitempty"`
}

func (r ReplayResult) String() string {
	var b strings.Builder
	if r.Match {
		fmt.Fprintf(&b, "✓ %s: %d lines reproduced from step %d", r.LogPath, r.Checked, r.StartStep)
	} else {
		fmt.Fprintf(&b, "✗ %s: diverges after %d lines from step %d", r.LogPath, r.Checked, r.StartStep)
	}
	if r.Skipped > 0 {
		fmt.Fprintf(&b, " (%d earlier lines skipped)", r.Skipped)
	}
	if r.Halted {
		fmt.Fprintf(&b, "\n  halted at step %d", r.NextStep)
	}
	if m := r.Mismatch; m != nil {
		fmt.Fprintf(&b, "\n  line %d (step %d): %s", m.Line, m.Step, m.Reason)
		if m.Want != "" {
			fmt.Fprintf(&b, "\n  want: %s", m.Want)
		}
		fmt.Fprintf(&b, "\n  got:  %s", m.Got)
	}
	return b.String()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <log-file>",
		Short: "Recompute a step log and verify it",
		Long: `Re-run the automaton and compare every step against an existing log.

Without --restore the replay starts from a fresh run. With --restore it starts
from the checkpoint and skips the log lines written before it, so the tail of a
resumed run can be checked without recomputing from step 0.

Exit codes:
  0 - Every checked line was reproduced
  1 - The log diverges from the automaton
  2 - Command error (unreadable log or checkpoint, etc.)

Examples:
  limbwalk replay steps.log
  limbwalk replay steps.log --restore state.ckpt
  limbwalk replay steps.log --group 1 --limit 1000 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Restore, "restore", "", "checkpoint to start the replay from")
	cmd.Flags().IntVar(&opts.Group, "group", engine.DefaultGroupLimbs, "limbs consumed per step (ignored with --restore)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many checked lines (0 = all)")

	return cmd
}

func runReplay(opts *ReplayOptions, logPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	if opts.Group < 1 || opts.Group > engine.MaxGroupLimbs {
		return NewExitError(ExitCommandError, fmt.Sprintf("--group must be in [1, %d]", engine.MaxGroupLimbs))
	}

	f, err := os.Open(logPath)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, "cannot open log file", err.Error())
		return WrapExitError(ExitCommandError, "failed to open log file", err)
	}
	defer f.Close()

	result := ReplayResult{LogPath: logPath, Restore: opts.Restore, Group: opts.Group}
	store := limbs.New()
	var engineOpts []engine.Option
	if opts.Restore != "" {
		formatter.VerboseLog("restoring %s", opts.Restore)
		rec, err := checkpoint.Restore(opts.Restore)
		if err == nil {
			store, err = rec.Store()
		}
		if err != nil {
			_ = formatter.Error(ErrCodeBadCheckpoint, "cannot restore checkpoint", err.Error())
			return WrapExitError(ExitCommandError, "failed to restore checkpoint", err)
		}
		result.Group = rec.Group
		result.StartStep = rec.Step
		engineOpts = append(engineOpts, engine.WithStart(rec.Step, rec.Counter, rec.Previous))
	}
	engineOpts = append(engineOpts, engine.WithGroupLimbs(result.Group))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := steplog.Verify(ctx, f, store, opts.Limit, engineOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return WrapExitError(ExitFailure, "replay interrupted", err)
		}
		return WrapExitError(ExitFailure, "replay failed", err)
	}

	result.Checked = res.Checked
	result.Skipped = res.Skipped
	result.Halted = res.Halted
	result.NextStep = res.NextStep
	result.Mismatch = res.Mismatch
	result.Match = res.Mismatch == nil

	if result.Match {
		return formatter.Success(result)
	}

	msg := fmt.Sprintf("log diverges at line %d", res.Mismatch.Line)
	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeLogDiverged, Message: msg},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), result)
	}
	return NewExitError(ExitFailure, msg)
}
