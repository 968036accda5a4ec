package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/modeltree/internal/demo"
	"github.com/roach88/modeltree/internal/engine"
	"github.com/roach88/modeltree/internal/state"
)

// ModelSummary is one entry of the model listing.
type ModelSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CommandInfo describes one callable path.
type CommandInfo struct {
	Path  string   `json:"path"`
	Kind  string   `json:"kind"`
	Types []string `json:"types"`
}

// ModelDetail is the introspection output for one model.
type ModelDetail struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Commands    []CommandInfo         `json:"commands"`
	ActionTypes []string              `json:"action_types"`
	Listeners   []engine.ListenerInfo `json:"listeners"`
	Initial     state.Object          `json:"initial"`
}

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models [name]",
		Short: "List demo models or describe one",
		Long: `List the bundled demo models, or describe one: its command paths, the
action types the reducer accepts, the listener registry and the initial
state.

Examples:
  modeltree models
  modeltree models session
  modeltree models todos --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return listModels(rootOpts, cmd)
			}
			return describeModel(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func listModels(opts *RootOptions, cmd *cobra.Command) error {
	var out []ModelSummary
	for _, d := range demo.All() {
		out = append(out, ModelSummary{Name: d.Name, Description: d.Description})
	}
	return newPrinter(opts, cmd).ok(out, func(w io.Writer) {
		for _, m := range out {
			fmt.Fprintf(w, "%-10s %s\n", m.Name, m.Description)
		}
	})
}

func describeModel(opts *RootOptions, name string, cmd *cobra.Command) error {
	def, err := demo.Lookup(name)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown model", err)
	}
	st, err := buildStore(cmd.Context(), opts, def)
	if err != nil {
		return err
	}
	defer st.Close(context.WithoutCancel(cmd.Context()))

	detail := ModelDetail{
		Name:        def.Name,
		Description: def.Description,
		ActionTypes: st.ActionTypes(),
		Listeners:   st.Listeners(),
		Initial:     st.State(),
	}
	for _, p := range st.Commands().Paths() {
		c := st.MustCommand(p)
		detail.Commands = append(detail.Commands, CommandInfo{Path: p, Kind: c.Kind().String(), Types: c.Types()})
	}

	return newPrinter(opts, cmd).ok(detail, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %s\n", detail.Name, detail.Description)
		fmt.Fprintln(w, "\nCommands:")
		for _, c := range detail.Commands {
			fmt.Fprintf(w, "  %-22s %-8s %s\n", c.Path, c.Kind, strings.Join(c.Types, " "))
		}
		fmt.Fprintln(w, "\nAction types:")
		for _, t := range detail.ActionTypes {
			fmt.Fprintf(w, "  %s\n", t)
		}
		if len(detail.Listeners) > 0 {
			fmt.Fprintln(w, "\nListeners:")
			for _, l := range detail.Listeners {
				fmt.Fprintf(w, "  %s (%s) <- %s\n", l.Path, l.Kind, strings.Join(l.Targets, ", "))
			}
		}
		fmt.Fprintf(w, "\nInitial state: %s\n", compact(detail.Initial))
	})
}

// buildStore instantiates a demo model with the CLI's logger, the demo's
// injections and the configured cascade step bound.
func buildStore(ctx context.Context, opts *RootOptions, def demo.Definition, extra ...engine.Option) (*engine.Store, error) {
	engOpts := []engine.Option{
		engine.WithLogger(opts.logger()),
		engine.WithMaxCascadeSteps(opts.Config.Engine.MaxCascadeSteps),
	}
	if def.Injections != nil {
		engOpts = append(engOpts, engine.WithInjections(def.Injections()))
	}
	st, err := engine.New(ctx, def.Build(), append(engOpts, extra...)...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to build model %s", def.Name), err)
	}
	return st, nil
}
