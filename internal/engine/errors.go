package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents a failure during dispatch.
//
// Runtime errors include:
//   - Handler failure: the dispatched mutator or a raw reducer failed; nothing
//     was committed
//   - Listener failure: a listener in the cascade failed; earlier changes in
//     the cascade stay applied
//   - Steps exceeded: the opt-in cascade quota stopped the cascade
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Cascade identifies the affected top-level dispatch.
	Cascade string

	// Type is the action type being processed when the error occurred.
	Type string

	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeHandlerFailed indicates the top-level action's handler failed.
	ErrCodeHandlerFailed RuntimeErrorCode = "HANDLER_FAILED"

	// ErrCodeListenerFailed indicates one or more listeners failed.
	ErrCodeListenerFailed RuntimeErrorCode = "LISTENER_FAILED"

	// ErrCodeStepsExceeded indicates the cascade hit WithMaxCascadeSteps.
	ErrCodeStepsExceeded RuntimeErrorCode = "STEPS_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Type != "" {
		fmt.Fprintf(&b, " (action=%s", e.Type)
		if e.Cascade != "" {
			fmt.Fprintf(&b, ", cascade=%s", e.Cascade)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying handler error(s).
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsHandlerError reports whether err is a top-level handler failure.
func IsHandlerError(err error) bool { return hasCode(err, ErrCodeHandlerFailed) }

// IsListenerError reports whether err reports listener failures.
func IsListenerError(err error) bool { return hasCode(err, ErrCodeListenerFailed) }

// IsStepsExceeded reports whether err is a cascade quota failure.
func IsStepsExceeded(err error) bool { return hasCode(err, ErrCodeStepsExceeded) }

// ErrUnknownCommand is the code of UnknownCommandError.
const ErrUnknownCommand = "E210"

// UnknownCommandError is returned when a path does not resolve to a
// mutator or effect. It is a configuration error: the set of commands is
// fixed when the store is built.
type UnknownCommandError struct {
	Path       string
	Suggestion string
}

// Error implements the error interface.
func (e *UnknownCommandError) Error() string {
	msg := fmt.Sprintf("[%s] no mutator or effect at %q", ErrUnknownCommand, e.Path)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// IsUnknownCommand reports whether err is an UnknownCommandError.
func IsUnknownCommand(err error) bool {
	var uc *UnknownCommandError
	return errors.As(err, &uc)
}
