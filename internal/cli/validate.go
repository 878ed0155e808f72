package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/limbwalk/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Path   string         `json:"path"`
	Valid  bool           `json:"valid"`
	Config *ConfigSummary `json:"config,omitempty"`
	Errors []config.Issue `json:"errors,omitempty"`
}

// ConfigSummary is the effective configuration after defaults are applied.
type ConfigSummary struct {
	LogFile            string `json:"log_file,omitempty"`
	CheckpointFile     string `json:"checkpoint_file,omitempty"`
	RestoreFile        string `json:"restore_file,omitempty"`
	CheckpointInterval string `json:"checkpoint_interval"`
	StatusInterval     string `json:"status_interval"`
	Workers            int    `json:"workers"`
	ChunksPerWorker    int    `json:"chunks_per_worker"`
	GroupLimbs         int    `json:"group_limbs"`
	Compress           bool   `json:"compress"`
	Ledger             string `json:"ledger,omitempty"`
	Label              string `json:"label,omitempty"`
	LogLevel           string `json:"log_level"`
	EventLog           string `json:"event_log,omitempty"`
}

func summarize(c *config.Config) *ConfigSummary {
	return &ConfigSummary{
		LogFile:            c.LogFile,
		CheckpointFile:     c.CheckpointFile,
		RestoreFile:        c.RestoreFile,
		CheckpointInterval: c.CheckpointInterval.String(),
		StatusInterval:     c.StatusInterval.String(),
		Workers:            c.Workers,
		ChunksPerWorker:    c.ChunksPerWorker,
		GroupLimbs:         c.GroupLimbs,
		Compress:           c.Compress,
		Ledger:             c.Ledger,
		Label:              c.Label,
		LogLevel:           c.LogLevel,
		EventLog:           c.EventLog,
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a config file without running",
		Long: `Check a YAML config file against the schema and print the effective
settings with defaults filled in.

Exit codes:
  0 - The file is valid
  1 - The file violates the schema
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, "config file not found", err.Error())
		return WrapExitError(ExitCommandError, "config file not found", err)
	}

	formatter.VerboseLog("validating %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		var se *config.SchemaError
		issues := []config.Issue{{Message: err.Error()}}
		if errors.As(err, &se) {
			issues = se.Issues()
		}
		return outputValidationErrors(formatter, path, issues)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Path: path, Valid: true, Config: summarize(cfg)})
	}

	w := formatter.Writer
	s := summarize(cfg)
	fmt.Fprintf(w, "✓ %s is valid\n", path)
	fmt.Fprintf(w, "  group_limbs:         %d\n", s.GroupLimbs)
	fmt.Fprintf(w, "  workers:             %d\n", s.Workers)
	fmt.Fprintf(w, "  chunks_per_worker:   %d\n", s.ChunksPerWorker)
	fmt.Fprintf(w, "  checkpoint_interval: %s\n", s.CheckpointInterval)
	fmt.Fprintf(w, "  status_interval:     %s\n", s.StatusInterval)
	fmt.Fprintf(w, "  compress:            %t\n", s.Compress)
	fmt.Fprintf(w, "  log_level:           %s\n", s.LogLevel)
	return nil
}

// outputValidationErrors outputs every schema violation.
func outputValidationErrors(formatter *OutputFormatter, path string, issues []config.Issue) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Path: path, Valid: false, Errors: issues},
			Error: &CLIError{
				Code:    ErrCodeInvalidConfig,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintf(formatter.Writer, "✗ %s is invalid\n\n", path)
	for _, is := range issues {
		if is.Path != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", is.Path, is.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s\n", is.Message)
		}
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
