// Package cli wires the miniwowbot commands.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the miniwowbot CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "miniwowbot",
		Short: "miniwowbot - screen-driven game automation",
		Long: `Drives a mobile game through an on-device helper: probes the screen for
templates, picks the highest-priority rule that applies and taps.`,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "miniwowbot.yaml", "path to the YAML config")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))

	return cmd
}
