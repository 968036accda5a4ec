package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/modeltree/internal/state"
)

// Configuration error codes (E200-E209)
const (
	ErrUnmarkedFunction = "E201" // function value without a node constructor
	ErrUnresolvedTarget = "E202" // listener target does not name a mutator, effect or listener
	ErrDuplicateType    = "E203" // two nodes synthesize the same action type
	ErrInvalidKey       = "E204" // empty key or key containing "."
	ErrInvalidNode      = "E205" // constructor given a nil function or no targets
	ErrComputedNoDeps   = "E206" // computed node without dependency selectors
)

// ConfigError is one problem found while compiling a model tree.
type ConfigError struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ConfigError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, path, e.Message)
}

// ConfigErrors is every problem found in one Compile call.
type ConfigErrors []ConfigError

// Error implements the error interface.
func (es ConfigErrors) Error() string {
	if len(es) == 1 {
		return "invalid model: " + es[0].Error()
	}
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("invalid model: %d errors: %s", len(es), strings.Join(msgs, "; "))
}

// Codes returns the error codes in order.
func (es ConfigErrors) Codes() []string {
	codes := make([]string, len(es))
	for i, e := range es {
		codes[i] = e.Code
	}
	return codes
}

// IsConfigError reports whether err carries configuration errors.
func IsConfigError(err error) bool {
	var many ConfigErrors
	var one ConfigError
	return errors.As(err, &many) || errors.As(err, &one)
}

// ReduceError is a handler or raw reducer failure. The state it was applied
// to is left untouched.
type ReduceError struct {
	Type string
	Path state.Path
	Err  error
}

// Error implements the error interface.
func (e *ReduceError) Error() string {
	return fmt.Sprintf("reduce %s at %s: %v", e.Type, e.Path, e.Err)
}

// Unwrap returns the handler's error.
func (e *ReduceError) Unwrap() error {
	return e.Err
}
