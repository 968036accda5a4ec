package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/modeltree/internal/state"
)

// Process exit statuses.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a scenario or call ran and did not succeed
	ExitCommandError = 2 // the command itself was unusable: args, files, config
)

// ExitError carries the status main should exit with. Err is optional.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process status. Errors without an ExitError in
// their chain count as ExitFailure.
func GetExitCode(err error) int {
	var ee *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ee):
		return ee.Code
	default:
		return ExitFailure
	}
}

// Response is the JSON envelope written in --format json.
type Response struct {
	Status string `json:"status"` // "ok" or "error"
	Data   any    `json:"data,omitempty"`
}

// printer writes command output in the selected format.
type printer struct {
	json bool
	w    io.Writer
}

func newPrinter(opts *RootOptions, cmd *cobra.Command) *printer {
	return &printer{json: opts.Format == "json", w: cmd.OutOrStdout()}
}

// ok writes data as an "ok" envelope, or calls text for human output.
func (p *printer) ok(data any, text func(w io.Writer)) error {
	return p.emit("ok", data, text)
}

// fail is ok with status "error". The caller still returns the error.
func (p *printer) fail(data any, text func(w io.Writer)) error {
	return p.emit("error", data, text)
}

func (p *printer) emit(status string, data any, text func(w io.Writer)) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(Response{Status: status, Data: data})
	}
	text(p.w)
	return nil
}

// compact renders a value as canonical JSON for text output.
func compact(v any) string {
	if v == nil {
		return "null"
	}
	data, err := state.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
