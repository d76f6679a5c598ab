package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jasoft/miniwowbot/config"
	"github.com/jasoft/miniwowbot/rules"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a config and print the compiled rule set",
		Long: `Load the config, resolve templates, compile every rule condition and
print the groups and rules in priority order. Nothing connects to a device.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return writeSummary(cmd.OutOrStdout(), cfg)
		},
	}
	return cmd
}

func writeSummary(w io.Writer, cfg config.Config) error {
	var b strings.Builder
	fmt.Fprintf(&b, "ok: %d templates, %d groups, %d rules\n", len(cfg.Templates), len(cfg.Groups), len(cfg.Rules))
	fmt.Fprintf(&b, "loop: every %s, slow groups every %s, busy while %s\n",
		cfg.Loop.FastInterval, cfg.Loop.SlowInterval, orNone(cfg.Loop.BusySignal))
	fmt.Fprintf(&b, "staleness: after %s, recover %s\n",
		cfg.Staleness.Threshold, orNone(strings.Join(cfg.Staleness.Recover, "|")))

	for _, g := range cfg.Groups {
		sigs := make([]string, len(g.Signals))
		for i, s := range g.Signals {
			sigs[i] = s.Signal + "=" + s.Template
		}
		fmt.Fprintf(&b, "group %s (%s, %s): %s\n", g.Name, g.Cadence, g.Mode, strings.Join(sigs, ", "))
	}
	for i, r := range cfg.Rules {
		fmt.Fprintf(&b, "rule %d %s: %s\n", i+1, r.Name, describeRule(r))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func describeRule(s rules.Spec) string {
	do := s.Do
	if do == "" {
		do = rules.DoNoop
	}
	parts := []string{do}
	if s.Do == rules.DoWait {
		parts = append(parts, s.Wait)
	} else {
		if s.Target != "" {
			parts = append(parts, s.Target)
		}
		if len(s.Targets) > 0 {
			parts = append(parts, strings.Join(s.Targets, "|"))
		}
		if s.Wait != "" {
			parts = append(parts, "then wait "+s.Wait)
		}
	}
	if s.Progress {
		parts = append(parts, "+progress")
	}
	if s.When != "" {
		parts = append(parts, "when "+s.When)
	}
	return strings.Join(parts, " ")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
