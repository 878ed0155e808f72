package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/limbwalk/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Ledger string
	Limit  int
	RunID  string
}

// HistoryEntry is one run in the history listing.
type HistoryEntry struct {
	RunID          string  `json:"run_id"`
	Label          string  `json:"label,omitempty"`
	StartedAt      string  `json:"started_at"`
	StartStep      uint64  `json:"start_step"`
	ResumedFrom    string  `json:"resumed_from,omitempty"`
	Checkpoints    int     `json:"checkpoints"`
	LastCheckpoint *uint64 `json:"last_checkpoint,omitempty"`
	Outcome        string  `json:"outcome"`
	FinalStep      *uint64 `json:"final_step,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// HistoryResult is the history listing.
type HistoryResult struct {
	Runs []HistoryEntry `json:"runs"`
}

func (r HistoryResult) String() string {
	if len(r.Runs) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	for i, e := range r.Runs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %s  %s", e.RunID, e.StartedAt, e.Outcome)
		if e.FinalStep != nil {
			fmt.Fprintf(&b, " at step %d", *e.FinalStep)
		}
		if e.Label != "" {
			fmt.Fprintf(&b, "  [%s]", e.Label)
		}
		fmt.Fprintf(&b, "\n  from step %d", e.StartStep)
		if e.ResumedFrom != "" {
			fmt.Fprintf(&b, " (resumed from %s)", e.ResumedFrom)
		}
		fmt.Fprintf(&b, ", %d checkpoints", e.Checkpoints)
		if e.LastCheckpoint != nil {
			fmt.Fprintf(&b, ", last at step %d", *e.LastCheckpoint)
		}
		if e.Error != "" {
			fmt.Fprintf(&b, "\n  error: %s", e.Error)
		}
	}
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded in a ledger, most recent first, with their
checkpoint count and outcome.

Examples:
  limbwalk history --ledger runs.db
  limbwalk history --ledger runs.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "path to SQLite run ledger (required)")
	_ = cmd.MarkFlagRequired("ledger")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Ledger)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, "cannot open ledger", err.Error())
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer st.Close()

	runs, err := st.ReadHistory(ctx, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, "cannot read ledger", err.Error())
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	result := HistoryResult{Runs: make([]HistoryEntry, 0, len(runs))}
	for _, r := range runs {
		e := HistoryEntry{
			RunID:          r.ID,
			Label:          r.Label,
			StartedAt:      r.StartedAt.Local().Format(time.DateTime),
			StartStep:      r.StartStep,
			ResumedFrom:    r.ResumedFrom,
			Checkpoints:    r.Checkpoints,
			LastCheckpoint: r.LastCheckpoint,
			Outcome:        "running",
		}
		if r.Outcome != nil {
			e.Outcome = string(r.Outcome.Kind)
			step := r.Outcome.Step
			e.FinalStep = &step
			e.Error = r.Outcome.Error
		}
		result.Runs = append(result.Runs, e)
	}

	return formatter.Success(result)
}
