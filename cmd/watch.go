// File: cmd/watch.go
package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/engine"
	"github.com/xkilldash9x/snitchlint/internal/watcher"
)

// newWatchCmd creates the `watch` command, which scans once and then
// re-analyzes files as they change until interrupted.
func newWatchCmd(state *cliState) *cobra.Command {
	opts := &scanOptions{}
	watchCmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Scans, then rescans changed files until interrupted",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := state.logger()
			cfg := applyScanOptions(state.cfg, opts)
			roots := scanRoots(args)

			eng, err := engine.NewFromConfig(cfg, opts.rules, logger)
			if err != nil {
				return err
			}

			current, err := eng.Scan(ctx, roots)
			if err != nil {
				return watchExit(err)
			}
			if err := writeReport(cmd.OutOrStdout(), cfg.Report, eng.Rules(), current, logger); err != nil {
				return err
			}

			w := watcher.New(cfg.Watch, eng.Discoverer().Scope(), logger)
			err = w.Run(ctx, roots, func(ctx context.Context, changed []string) {
				next, err := eng.Rescan(ctx, current, changed)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						logger.Error("Rescan failed", zap.Error(err))
					}
					return
				}
				current = next
				if err := writeReport(cmd.OutOrStdout(), cfg.Report, eng.Rules(), current, logger); err != nil {
					logger.Error("Failed to write report", zap.Error(err))
				}
			})
			if err != nil {
				return err
			}
			logger.Info("Stopped watching")
			return nil
		},
	}

	flags := watchCmd.Flags()
	flags.StringP("format", "f", "", "report format (overrides config/env)")
	flags.StringP("output", "o", "", "write each report to this file instead of stdout")
	flags.Bool("no-color", false, "disable colors in the text report")
	flags.Duration("debounce", 0, "quiet period before changed files are rescanned (overrides config/env)")
	flags.StringSliceVar(&opts.rules, "rules", nil, "only run these rule IDs (comma separated)")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "additional file or directory patterns to exclude")

	bindReportFlags(flags)
	bindFlag(flags, "debounce", "watch.debounce")

	return watchCmd
}

// watchExit treats an interrupt during the initial scan as a clean stop.
func watchExit(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
