package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jasoft/miniwowbot/journal"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Limit    int
	Kind     string
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recent journal entries",
		Long: `Print what the bot recorded: escalations, rule switches, action faults,
race winners and signal edges, newest first.

Example:
  miniwowbot journal --db miniwowbot.db --limit 20 --kind escalation`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "number of entries to show")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show entries of this kind")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	j, err := journal.Open(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(cmd.Context(), journal.Kind(opts.Kind), opts.Limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no entries")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-12s  %-16s  %s\n", e.At.UTC().Format(time.RFC3339), e.Kind, e.Name, e.Detail)
	}
	return nil
}
