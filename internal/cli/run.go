package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/modeltree/internal/engine"
	"github.com/roach88/modeltree/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-path>...",
		Short: "Run YAML scenarios against the demo models",
		Long: `Run scenario files against the bundled demo models, checking step
expectations and trace, state, computed and storage assertions.

Directories contribute their *.yaml and *.yml files. Runs are
deterministic: cascade tokens are <cascade>-1, <cascade>-2, ... and
sequence numbers start at 1.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing paths, etc.)

Examples:
  modeltree run ./scenarios
  modeltree run ./scenarios/counter.yaml --format json
  modeltree run ./scenarios --journal ./journal.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "append processed actions to this SQLite journal")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	logger := opts.logger()
	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxCascadeSteps(opts.Config.Engine.MaxCascadeSteps),
	}

	journal, err := openJournal(opts.Journal)
	if err != nil {
		return err
	}
	if journal != nil {
		defer closeLogged(logger, "journal", journal.Close)
		engOpts = append(engOpts, engine.WithObserver(journal.Journal(logger)))
	}

	sum, err := harness.RunAll(cmd.Context(), paths, engOpts...)
	if err != nil {
		var nf *harness.ScenarioNotFoundError
		if errors.As(err, &nf) {
			return WrapExitError(ExitCommandError, "scenario path not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to discover scenarios", err)
	}

	text := func(w io.Writer) {
		if sum.Total == 0 {
			fmt.Fprintln(w, "No scenarios found.")
			return
		}
		for _, f := range sum.Failures {
			name := f.Scenario
			if name == "" {
				name = f.Path
			}
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range f.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		fmt.Fprintf(w, "%d scenarios: %d passed, %d failed\n", sum.Total, sum.Passed, sum.Failed)
	}

	p := newPrinter(opts.RootOptions, cmd)
	if sum.OK() {
		return p.ok(sum, text)
	}
	if err := p.fail(sum, text); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", sum.Failed, sum.Total))
}
