// Package errors provides structured error types and exit codes for conform.
//
// Configuration conflicts and malformed engine output are fatal and surface
// as errors. Unmatched diagnostics are never errors: they are the data the
// diff engine reports.
package errors

import (
	"errors"
	"fmt"
)

// Exit codes returned by the conform CLI.
const (
	ExitSuccess          = 0 // Success
	ExitRuntimeError     = 1 // Runtime error or failing variations
	ExitConfigError      = 2 // Configuration error (invalid suite, reserved option, etc.)
	ExitEnvironmentError = 3 // Environment error (engine executable missing, etc.)
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindConfig
	KindNotFound
	KindValidation
	KindEnvironment
	// KindEngine marks a failure raised by the target engine during a run.
	KindEngine
	// KindMalformed marks a diagnostic of a shape the harness does not recognize.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindRuntime:
		return "runtime"
	case KindConfig:
		return "config"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	case KindEnvironment:
		return "environment"
	case KindEngine:
		return "engine"
	case KindMalformed:
		return "malformed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ConformError is the base error type for conform.
type ConformError struct {
	Kind      ErrorKind
	Message   string
	Variation string // Full variation ID if applicable
	Cause     error  // Underlying error
}

func (e *ConformError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Variation != "" {
		return fmt.Sprintf("[%s] %s", e.Variation, msg)
	}
	return msg
}

func (e *ConformError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *ConformError) ExitCode() int {
	switch e.Kind {
	case KindConfig, KindValidation:
		return ExitConfigError
	case KindEnvironment:
		return ExitEnvironmentError
	default:
		return ExitRuntimeError
	}
}

// New creates a new runtime error.
func New(message string) *ConformError {
	return &ConformError{
		Kind:    KindRuntime,
		Message: message,
	}
}

// Newf creates a new runtime error with formatting.
func Newf(format string, args ...interface{}) *ConformError {
	return New(fmt.Sprintf(format, args...))
}

// Config creates a new configuration error.
func Config(message string) *ConformError {
	return &ConformError{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *ConformError {
	return Config(fmt.Sprintf(format, args...))
}

// Environment creates a new environment error.
func Environment(message string) *ConformError {
	return &ConformError{
		Kind:    KindEnvironment,
		Message: message,
	}
}

// Environmentf creates a new environment error with formatting.
func Environmentf(format string, args ...interface{}) *ConformError {
	return Environment(fmt.Sprintf(format, args...))
}

// Validationf creates a validation error for malformed suite input.
func Validationf(format string, args ...interface{}) *ConformError {
	return &ConformError{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// Malformedf reports a diagnostic of an unrecognized shape.
func Malformedf(format string, args ...interface{}) *ConformError {
	return &ConformError{
		Kind:    KindMalformed,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) *ConformError {
	return &ConformError{
		Kind:    KindRuntime,
		Message: message,
		Cause:   err,
	}
}

// WrapConfig wraps an error as a configuration error.
func WrapConfig(err error, message string) *ConformError {
	return &ConformError{
		Kind:    KindConfig,
		Message: message,
		Cause:   err,
	}
}

// Engine wraps a failure of the target engine while running a variation.
func Engine(variation string, err error) *ConformError {
	kind := KindEngine
	var ce *ConformError
	if errors.As(err, &ce) && ce.Kind == KindMalformed {
		kind = KindMalformed
	}
	return &ConformError{
		Kind:      kind,
		Variation: variation,
		Message:   "engine run failed",
		Cause:     err,
	}
}

// NotFound creates a not found error.
func NotFound(what, name string) *ConformError {
	return &ConformError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, name),
	}
}

// KindOf returns the kind of err, or KindRuntime for foreign errors.
func KindOf(err error) ErrorKind {
	var ce *ConformError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindRuntime
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ce *ConformError
	if errors.As(err, &ce) {
		return ce.ExitCode()
	}
	return ExitRuntimeError
}
