package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/modeltree/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Action   string // optional - filter to one action type
}

// JournalEntry is one journaled action. Its fields mirror
// store.ActionRecord.
type JournalEntry struct {
	Cascade string `json:"cascade"`
	Seq     int64  `json:"seq"`
	Depth   int    `json:"depth"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Changed bool   `json:"changed"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal [cascade]",
		Short: "Read the action journal",
		Long: `Read the action journal written by run --journal or call --journal.

Without arguments the cascades are listed in the order they started. With
a cascade token every action of that cascade is printed, indented by
depth. --action lists every occurrence of one action type instead.

Examples:
  modeltree journal --db ./journal.db
  modeltree journal --db ./journal.db session_login-1
  modeltree journal --db ./journal.db --action @mutator.session.login`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cascade := ""
			if len(args) == 1 {
				cascade = args[0]
			}
			return readJournal(opts, cascade, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Action, "action", "", "only show actions of this type")

	return cmd
}

func readJournal(opts *JournalOptions, cascade string, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); errors.Is(err, os.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer closeLogged(opts.logger(), "database", st.Close)

	ctx := cmd.Context()
	p := newPrinter(opts.RootOptions, cmd)

	if cascade == "" && opts.Action == "" {
		cascades, err := st.Cascades(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list cascades", err)
		}
		return p.ok(cascades, func(w io.Writer) {
			if len(cascades) == 0 {
				fmt.Fprintln(w, "Journal is empty.")
			}
			for _, c := range cascades {
				fmt.Fprintln(w, c)
			}
		})
	}

	var recs []store.ActionRecord
	if cascade != "" {
		recs, err = st.ReadCascade(ctx, cascade)
	} else {
		recs, err = st.ReadActions(ctx, opts.Action)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	entries := make([]JournalEntry, 0, len(recs))
	for _, r := range recs {
		if opts.Action != "" && r.Type != opts.Action {
			continue
		}
		entries = append(entries, JournalEntry(r))
	}
	if len(entries) == 0 {
		return NewExitError(ExitFailure, "no matching actions in the journal")
	}

	return p.ok(entries, func(w io.Writer) {
		for _, e := range entries {
			line := fmt.Sprintf("[%d] %s%s", e.Seq, strings.Repeat("  ", e.Depth), e.Type)
			if e.Payload != nil {
				line += " " + compact(e.Payload)
			}
			if e.Error != "" {
				line += " error=" + e.Error
			}
			if cascade == "" {
				line += "  (" + e.Cascade + ")"
			}
			fmt.Fprintln(w, line)
		}
	})
}
