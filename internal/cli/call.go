package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/modeltree/internal/demo"
	"github.com/roach88/modeltree/internal/engine"
	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/persist"
	"github.com/roach88/modeltree/internal/state"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Dispatch bool   // treat the path as a raw action type
	Journal  string // SQLite journal path, empty to disable
}

// CallResult is the outcome of one call.
type CallResult struct {
	Model  string       `json:"model"`
	Target string       `json:"target"`
	Result any          `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
	State  state.Object `json:"state"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <model> <path> [payload]",
		Short: "Invoke one command of a demo model",
		Long: `Invoke a mutator or effect of a demo model and print the result and the
resulting state.

The store hydrates from the configured storage backend before the call and
flushes to it afterwards, so successive calls against the sqlite or bolt
backend build on each other. The payload is parsed as JSON; anything that
is not valid JSON is passed as a plain string.

Examples:
  modeltree call counter inc
  modeltree call counter inc 5
  modeltree call todos add milk
  modeltree call session NAVIGATE '"/home"' --dispatch
  modeltree call profile setTheme dark --journal ./journal.db`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload any
			if len(args) == 3 {
				payload = parsePayload(args[2])
			}
			return callModel(opts, args[0], args[1], payload, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Dispatch, "dispatch", false, "dispatch <path> as a raw action type")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "append processed actions to this SQLite journal")

	return cmd
}

func parsePayload(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	return v
}

// persistConfigs returns the demo's own persisted subtrees, or the whole
// tree under the configured key.
func persistConfigs(opts *RootOptions, def demo.Definition) []persist.Config {
	if len(def.Persist) > 0 {
		return def.Persist
	}
	return []persist.Config{{
		Key:      opts.Config.Persist.Key,
		Merge:    opts.Config.MergeStrategy(),
		Debounce: opts.Config.Persist.Debounce,
	}}
}

func callModel(opts *CallOptions, name, target string, payload any, cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := opts.logger()

	def, err := demo.Lookup(name)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown model", err)
	}

	storage, closeStorage, err := openBackend(opts.Config.Storage, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer closeLogged(logger, "storage", closeStorage)

	var extra []engine.Option
	for _, cfg := range persistConfigs(opts.RootOptions, def) {
		extra = append(extra, engine.WithPersistence(storage, cfg))
	}
	journal, err := openJournal(opts.Journal)
	if err != nil {
		return err
	}
	if journal != nil {
		defer closeLogged(logger, "journal", journal.Close)
		extra = append(extra, engine.WithObserver(journal.Journal(logger)))
	}

	st, err := buildStore(ctx, opts.RootOptions, def, extra...)
	if err != nil {
		return err
	}
	if herr := st.HydrateErr(); herr != nil {
		logger.Warn("hydration failed, using defaults", "model", def.Name, "error", herr)
	}

	var (
		res     any
		callErr error
	)
	if opts.Dispatch {
		res, callErr = st.Dispatch(ctx, model.Action{Type: target, Payload: payload})
	} else {
		c, lookupErr := st.Command(target)
		if lookupErr != nil {
			st.Close(context.WithoutCancel(ctx))
			return WrapExitError(ExitCommandError, "unknown command", lookupErr)
		}
		res, callErr = c.Call(ctx, payload)
	}

	if err := st.WaitEffects(ctx); err != nil {
		logger.Warn("effects still running", "error", err)
	}
	closeErr := st.Close(context.WithoutCancel(ctx))

	out := CallResult{Model: def.Name, Target: target, Result: res, State: st.State()}
	p := newPrinter(opts.RootOptions, cmd)
	if callErr != nil {
		out.Error = callErr.Error()
		if err := p.fail(out, func(w io.Writer) { fmt.Fprintf(w, "error: %s\n", out.Error) }); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, fmt.Sprintf("%s %s failed", def.Name, target), callErr)
	}
	if closeErr != nil {
		return WrapExitError(ExitFailure, "failed to persist state", closeErr)
	}
	return p.ok(out, func(w io.Writer) {
		if out.Result != nil {
			fmt.Fprintf(w, "result: %s\n", compact(out.Result))
		}
		fmt.Fprintf(w, "state:  %s\n", compact(out.State))
	})
}
