package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/modeltree/internal/store"
)

// StoredValue is one key and its raw serialized value.
type StoredValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RevisionInfo is one entry of a key's history.
type RevisionInfo struct {
	Version int64  `json:"version"`
	Value   string `json:"value"`
}

// NewStorageCommand creates the storage command group.
func NewStorageCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Read values from the configured storage backend",
		Long: `Read the values persisted by modeltree call from the sqlite or bolt
storage file named by storage.path.

Keys have the form <persist key>:<dotted path>, for example
modeltree:count or profile:theme.

Examples:
  modeltree storage keys
  modeltree storage get profile:theme
  modeltree storage history modeltree:count`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "keys",
		Short:         "List stored keys",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return storageKeys(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "get <key>",
		Short:         "Print the stored value of a key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return storageGet(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "history <key>",
		Short:         "Print every value a key has had (sqlite only)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return storageHistory(rootOpts, args[0], cmd)
		},
	})

	return cmd
}

func storageKeys(opts *RootOptions, cmd *cobra.Command) error {
	b, closeFn, err := openExisting(opts.Config.Storage, opts.logger())
	if err != nil {
		return err
	}
	defer closeLogged(opts.logger(), "storage", closeFn)

	keys, err := b.Keys(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list keys", err)
	}
	return newPrinter(opts, cmd).ok(keys, func(w io.Writer) {
		for _, k := range keys {
			fmt.Fprintln(w, k)
		}
	})
}

func storageGet(opts *RootOptions, key string, cmd *cobra.Command) error {
	b, closeFn, err := openExisting(opts.Config.Storage, opts.logger())
	if err != nil {
		return err
	}
	defer closeLogged(opts.logger(), "storage", closeFn)

	raw, err := readKey(cmd.Context(), b, key)
	if err != nil {
		return err
	}
	out := StoredValue{Key: key, Value: string(raw)}
	return newPrinter(opts, cmd).ok(out, func(w io.Writer) {
		fmt.Fprintln(w, out.Value)
	})
}

func storageHistory(opts *RootOptions, key string, cmd *cobra.Command) error {
	b, closeFn, err := openExisting(opts.Config.Storage, opts.logger())
	if err != nil {
		return err
	}
	defer closeLogged(opts.logger(), "storage", closeFn)

	st, ok := b.(*store.Store)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("history needs the sqlite backend, not %s", opts.Config.Storage.Backend))
	}
	revs, err := st.History(cmd.Context(), key)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	if len(revs) == 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("key %q has no history", key))
	}

	out := make([]RevisionInfo, len(revs))
	for i, r := range revs {
		out[i] = RevisionInfo{Version: r.Version, Value: string(r.Value)}
	}
	return newPrinter(opts, cmd).ok(out, func(w io.Writer) {
		for _, r := range out {
			fmt.Fprintf(w, "v%d  %s\n", r.Version, r.Value)
		}
	})
}
