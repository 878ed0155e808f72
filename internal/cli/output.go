package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution, including a halted automaton
	ExitFailure      = 1 // Runtime failure (invariant violation, log write failed, etc.)
	ExitCommandError = 2 // Command error (bad flags, unreadable checkpoint, log file cannot be opened)
)

// Error codes for CLI responses.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeNotFound       = "E005" // Path not found
	ErrCodeInvalidConfig  = "E101" // Config file violates the schema
	ErrCodeBadCheckpoint  = "E201" // Checkpoint cannot be decoded
	ErrCodeLedger         = "E301" // Ledger cannot be opened or queried
	ErrCodeScenarioFailed = "E401" // One or more scenarios failed
	ErrCodeLogDiverged    = "E402" // Step log does not match a replay
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text or as a JSON envelope.
// Diagnostics go to ErrWriter so they never interleave with a JSON document
// on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope every command emits with --format json.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError carries one of the ErrCode values.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Success writes data. Text mode relies on fmt, so a result type with a
// String method controls its own rendering.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a failure. Details only reach text output in verbose mode.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog prints a diagnostic line when Verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns ErrWriter, or Writer when none was configured.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
