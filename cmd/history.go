// File: cmd/history.go
package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript"
	"github.com/xkilldash9x/snitchlint/internal/config"
	"github.com/xkilldash9x/snitchlint/internal/engine"
	"github.com/xkilldash9x/snitchlint/internal/store"
)

// newHistoryCmd creates the `history` command group for scans recorded with
// store.dsn.
func newHistoryCmd(state *cliState) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Lists and re-renders scans recorded in the history database",
		Args:  cobra.NoArgs,
	}
	historyCmd.PersistentFlags().String("store-dsn", "", "PostgreSQL DSN of the history database (overrides config/env)")
	bindFlag(historyCmd.PersistentFlags(), "store-dsn", "store.dsn")

	historyCmd.AddCommand(newHistoryListCmd(state), newHistoryShowCmd(state))
	return historyCmd
}

func newHistoryListCmd(state *cliState) *cobra.Command {
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the most recent scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openHistory(cmd, state)
			if err != nil {
				return err
			}
			defer st.Close()

			scans, err := st.RecentScans(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printScans(cmd.OutOrStdout(), scans)
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of scans to list")
	return listCmd
}

func newHistoryShowCmd(state *cliState) *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show <scan-id>",
		Short: "Renders a recorded scan in any report format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openHistory(cmd, state)
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := st.LoadResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rules, err := rulesByID(state.cfg, result.Rules)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), state.cfg.Report, rules, result, state.logger())
		},
	}
	flags := showCmd.Flags()
	flags.StringP("format", "f", "", "report format (overrides config/env)")
	flags.StringP("output", "o", "", "write the report to this file instead of stdout")
	flags.Bool("no-color", false, "disable colors in the text report")
	bindReportFlags(flags)
	return showCmd
}

func openHistory(cmd *cobra.Command, state *cliState) (*store.Store, error) {
	cfg := state.cfg
	if !cfg.Store.Enabled() {
		return nil, fmt.Errorf("no history database: set store.dsn, SNITCHLINT_STORE_DSN or --store-dsn")
	}
	st, err := store.Open(cmd.Context(), cfg.Store, state.logger())
	if err != nil {
		return nil, fmt.Errorf("failed to open scan history: %w", err)
	}
	return st, nil
}

// rulesByID resolves the rule metadata for the stored rule IDs. Rules that
// are no longer configured are skipped; reporters fall back to the ID.
func rulesByID(cfg *config.Config, ids []string) ([]javascript.Rule, error) {
	statuses, err := engine.ResolveRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]javascript.Rule, len(statuses))
	for _, s := range statuses {
		byID[s.Rule.ID] = s.Rule
	}
	var rules []javascript.Rule
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			rules = append(rules, r)
		}
	}
	return rules, nil
}

func printScans(out io.Writer, scans []store.ScanSummary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCAN ID\tSTARTED\tDURATION\tFILES\tFINDINGS\tROOTS")
	for _, s := range scans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID,
			s.StartedAt.Local().Format(time.DateTime),
			s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond),
			s.Stats.FilesAnalyzed,
			s.Stats.Findings,
			strings.Join(s.Roots, ","),
		)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write scan list: %w", err)
	}
	return nil
}
