// File: cmd/rules.go
package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/snitchlint/internal/engine"
)

// newRulesCmd creates the `rules` command, which lists the resolved rules.
func newRulesCmd(state *cliState) *cobra.Command {
	var showSources bool
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Lists the built-in and configured rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := engine.ResolveRules(state.cfg.Rules)
			if err != nil {
				return err
			}
			return printRules(cmd.OutOrStdout(), rules, showSources)
		},
	}
	rulesCmd.Flags().BoolVar(&showSources, "show-sources", false, "also list the source patterns of each rule")
	return rulesCmd
}

func printRules(out io.Writer, rules []engine.RuleStatus, showSources bool) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := "ID\tENABLED\tCWE\tTITLE\tSINKS"
	if showSources {
		header += "\tSOURCES"
	}
	fmt.Fprintln(tw, header)

	for _, rs := range rules {
		cwe := "-"
		if rs.Rule.CWE > 0 {
			cwe = fmt.Sprintf("CWE-%d", rs.Rule.CWE)
		}
		id := rs.Rule.ID
		if !rs.Builtin {
			id += " (custom)"
		}
		line := fmt.Sprintf("%s\t%t\t%s\t%s\t%s", id, rs.Enabled, cwe, rs.Rule.Title, strings.Join(rs.Rule.Sinks, ","))
		if showSources {
			line += "\t" + strings.Join(rs.Rule.Sources, ",")
		}
		fmt.Fprintln(tw, line)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write rule list: %w", err)
	}
	return nil
}
