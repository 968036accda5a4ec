package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/modeltree/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the modeltree config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the default settings",
		Long: `Write a config file with the default settings to path, or to the
--config path, or to ~/.config/modeltree/config.yaml.

Examples:
  modeltree config init
  modeltree config init ./modeltree.yaml --force`,
		Args:          cobra.MaximumNArgs(1),
		Annotations:   map[string]string{annotationSkipConfig: "true"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = config.DefaultPath()
			}
			return initConfig(rootOpts, path, force, cmd)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := rootOpts.Config
			return newPrinter(rootOpts, cmd).ok(c, func(w io.Writer) {
				fmt.Fprintf(w, "storage.backend: %s\n", c.Storage.Backend)
				fmt.Fprintf(w, "storage.path: %s\n", c.Storage.Path)
				fmt.Fprintf(w, "storage.bucket: %s\n", c.Storage.Bucket)
				fmt.Fprintf(w, "persist.key: %s\n", c.Persist.Key)
				fmt.Fprintf(w, "persist.debounce: %s\n", c.Persist.Debounce)
				fmt.Fprintf(w, "persist.merge: %s\n", c.Persist.Merge)
				fmt.Fprintf(w, "engine.max_cascade_steps: %d\n", c.Engine.MaxCascadeSteps)
				fmt.Fprintf(w, "log.level: %s\n", c.Log.Level)
				fmt.Fprintf(w, "log.format: %s\n", c.Log.Format)
			})
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func initConfig(opts *RootOptions, path string, force bool, cmd *cobra.Command) error {
	if _, err := os.Stat(path); err == nil && !force {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", path))
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return WrapExitError(ExitCommandError, "failed to stat config", err)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return WrapExitError(ExitCommandError, "failed to write config", err)
	}
	return newPrinter(opts, cmd).ok(map[string]string{"path": path}, func(w io.Writer) {
		fmt.Fprintf(w, "Wrote %s\n", path)
	})
}
