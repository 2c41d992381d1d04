package types

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of an orchestrator error.
type ErrorCode string

// Lookup and validation error codes
const (
	NOT_FOUND         ErrorCode = "NOT_FOUND"
	INVALID_INPUT     ErrorCode = "INVALID_INPUT"
	ALREADY_EXISTS    ErrorCode = "ALREADY_EXISTS"
	UNKNOWN_COMPONENT ErrorCode = "UNKNOWN_COMPONENT"
)

// Lifecycle error codes
const (
	ROLLOUT_ABORTED ErrorCode = "ROLLOUT_ABORTED"
	ROLLOUT_FAILED  ErrorCode = "ROLLOUT_FAILED"
	INVALID_STATE   ErrorCode = "INVALID_STATE"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Sentinel errors for errors.Is checks. Matching is by code, so any error built
// with NewError or WrapError and the same code satisfies errors.Is against these.
var (
	// ErrNotFound is returned for unknown provider, formation, manifest or instance ids.
	ErrNotFound = NewError(NOT_FOUND, "not found")

	// ErrInvalidInput is returned for malformed hints and empty required fields.
	ErrInvalidInput = NewError(INVALID_INPUT, "invalid input")

	// ErrUnknownComponent is returned when a manifest references an unregistered provider.
	ErrUnknownComponent = NewError(UNKNOWN_COMPONENT, "unknown component")

	// ErrRolloutAborted is returned when a rollout is cancelled between paced steps.
	// It is not fatal: the formation stays usable in its partial state.
	ErrRolloutAborted = NewError(ROLLOUT_ABORTED, "rollout aborted")
)

// Error represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code.
// ALREADY_EXISTS also matches ErrInvalidInput, since an id collision is a
// caller input problem.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	if e.Code == other.Code {
		return true
	}
	return e.Code == ALREADY_EXISTS && other.Code == INVALID_INPUT
}

// NewError creates a new non-retryable Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError creates a new non-retryable Error that wraps an existing error.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NotFound builds an ErrNotFound-compatible error naming the missing entity.
func NotFound(kind, id string) *Error {
	return NewError(NOT_FOUND, fmt.Sprintf("%s not found: %s", kind, id))
}

// InvalidInput builds an ErrInvalidInput-compatible error.
func InvalidInput(format string, args ...any) *Error {
	return NewError(INVALID_INPUT, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether err carries a retryable *Error anywhere in its chain.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
