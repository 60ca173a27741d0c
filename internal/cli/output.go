package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/roach88/moneymap/internal/api"
	"github.com/roach88/moneymap/internal/client"
	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/store"
	"github.com/roach88/moneymap/internal/workspace"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Validation or scenario failure, rejected operation
	ExitCommandError = 2 // Command error (invalid paths, database not reachable, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	reported bool // already written by an OutputFormatter
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

// Reported reports whether err was already written to the command output,
// so the caller should not print it again.
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.reported
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // same codes as the HTTP API
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

var (
	passMark = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "%s Error [%s]: %s\n", failMark, code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Pass prints a green check line. Text format only.
func (f *OutputFormatter) Pass(format string, args ...interface{}) {
	fmt.Fprintf(f.Writer, "%s %s\n", passMark, fmt.Sprintf(format, args...))
}

// Fail prints a red cross line. Text format only.
func (f *OutputFormatter) Fail(format string, args ...interface{}) {
	fmt.Fprintf(f.Writer, "%s %s\n", failMark, fmt.Sprintf(format, args...))
}

// Warn prints a yellow warning line. Text format only.
func (f *OutputFormatter) Warn(format string, args ...interface{}) {
	fmt.Fprintf(f.Writer, "%s %s\n", warnMark, fmt.Sprintf(format, args...))
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Report writes err in the configured format and returns the ExitError the
// command should exit with.
func (f *OutputFormatter) Report(message string, err error) error {
	code, exit := classify(err)
	if outErr := f.Error(code, fmt.Sprintf("%s: %v", message, err), nil); outErr != nil {
		return outErr
	}
	exitErr := WrapExitError(exit, message, err)
	exitErr.reported = true
	return exitErr
}

// classify maps an operation error to an API error code and exit code.
// Rejections are failures; anything else is a command error.
func classify(err error) (string, int) {
	var ve *graph.ValidationError
	var apiErr *client.APIError
	switch {
	case errors.As(err, &ve):
		return string(ve.Code), ExitFailure
	case errors.As(err, &apiErr):
		return apiErr.Code, ExitFailure
	case errors.Is(err, workspace.ErrInvalidVariant):
		return api.CodeInvalidVariant, ExitCommandError
	case errors.Is(err, store.ErrNotFound), errors.Is(err, graph.ErrNotFound):
		return api.CodeNotFound, ExitFailure
	case errors.Is(err, workspace.ErrNoPair):
		return api.CodeNoPair, ExitFailure
	case errors.Is(err, workspace.ErrLiveDelete):
		return api.CodeLiveDelete, ExitFailure
	case errors.Is(err, workspace.ErrPendingRequest):
		return api.CodePendingRequest, ExitFailure
	case errors.Is(err, workspace.ErrApprovalRequired):
		return api.CodeApprovalRequired, ExitFailure
	}
	return api.CodeInternal, ExitCommandError
}
