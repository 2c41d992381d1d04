package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitError        = 1
	ExitTimeout      = 3
	ExitCancelled    = 4
	ExitConfigError  = 10
	ExitNotFound     = 11
	ExitInvalidInput = 12
	ExitRolloutError = 13
)

// CLIError is an error carrying the process exit code.
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a CLIError wrapping err.
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Cause: err}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	}

	switch types.CodeOf(err) {
	case types.CONFIG_LOAD_FAILED, types.CONFIG_VALIDATION_FAILED:
		return ExitConfigError
	case types.NOT_FOUND:
		return ExitNotFound
	case types.INVALID_INPUT, types.ALREADY_EXISTS, types.UNKNOWN_COMPONENT:
		return ExitInvalidInput
	case types.ROLLOUT_ABORTED, types.ROLLOUT_FAILED:
		return ExitRolloutError
	}
	return ExitError
}

// HandleError prints err to the command's error output and returns the exit
// code to use.
func HandleError(cmd *cobra.Command, err error) int {
	code := ExitCode(err)
	switch code {
	case ExitSuccess:
		return code
	case ExitCancelled:
		cmd.PrintErrln("Operation cancelled")
	case ExitTimeout:
		cmd.PrintErrln("Operation timed out")
	default:
		cmd.PrintErrln("Error:", err)
	}
	return code
}
